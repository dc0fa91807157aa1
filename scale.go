package orrery

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownScale is returned when parsing an unsupported scale mode.
var ErrUnknownScale = errors.New("unknown scale mode")

// ScaleMode selects how physical sizes are mapped to display units.
type ScaleMode uint8

const (
	// Viewable compresses large distances with a square root (default).
	Viewable ScaleMode = iota
	// Realistic applies a linear factor.
	Realistic
	// Logarithmic applies log(x+1).
	Logarithmic
)

func (m ScaleMode) String() string {
	switch m {
	case Viewable:
		return "viewable"
	case Realistic:
		return "realistic"
	case Logarithmic:
		return "logarithmic"
	}
	return fmt.Sprintf("ScaleMode(%d)", uint8(m))
}

// ParseScaleMode returns the scale mode from its name.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "viewable":
		return Viewable, nil
	case "realistic", "linear":
		return Realistic, nil
	case "logarithmic", "log":
		return Logarithmic, nil
	}
	return Viewable, fmt.Errorf("%w: '%s'", ErrUnknownScale, s)
}

// ScaleMapper maps physical distances and sizes (km) to display units.
// Each factor must be strictly positive for the mapping to preserve ordering.
type ScaleMapper struct {
	Mode        ScaleMode
	Realistic   float64
	Logarithmic float64
	Viewable    float64
}

// DefaultScaleMapper returns a viewable mapper: Neptune ends up at about 1000 units.
func DefaultScaleMapper() ScaleMapper {
	return ScaleMapper{Mode: Viewable, Realistic: 1e-6, Logarithmic: 50, Viewable: 0.015}
}

// Map returns the display value of x, strictly increasing on [0, ∞).
// Negative and NaN inputs map to zero.
func (s ScaleMapper) Map(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		x = 0
	}
	switch s.Mode {
	case Realistic:
		return x * s.Realistic
	case Logarithmic:
		return math.Log1p(x) * s.Logarithmic
	default:
		return math.Sqrt(x) * s.Viewable
	}
}
