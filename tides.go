package orrery

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// G is the gravitational constant in m^3 kg^-1 s^-2.
	G = 6.67430e-11
	// DefaultLunarAmplitude is the height of the lunar bulge in meters.
	DefaultLunarAmplitude = 0.5
	// DefaultSolarAmplitude is the height of the solar bulge in meters (46% of the lunar one).
	DefaultSolarAmplitude = 0.46 * DefaultLunarAmplitude

	springThreshold = 1.2
	neapThreshold   = 0.8
)

// TideKind classifies the tidal range over the synodic cycle.
type TideKind uint8

const (
	// NormalTide is neither spring nor neap.
	NormalTide TideKind = iota
	// SpringTide happens when the Sun and Moon are aligned (new and full moon).
	SpringTide
	// NeapTide happens when the Sun and Moon are at right angles (quarters).
	NeapTide
)

// MarshalText implements encoding.TextMarshaler.
func (k TideKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k TideKind) String() string {
	switch k {
	case SpringTide:
		return "Spring Tide"
	case NeapTide:
		return "Neap Tide"
	case NormalTide:
		return "Normal Tide"
	}
	return fmt.Sprintf("TideKind(%d)", uint8(k))
}

// TideSample stores the tidal accelerations (m/s^2) raised on the primary.
type TideSample struct {
	Lunar, Solar, Total float64
	Ratio               float64 // Lunar over solar
}

// TideHeight stores the bulge height (m) at a surface point.
type TideHeight struct {
	Lunar, Solar, Total float64
}

// GravitationalForce returns the force (N) between two masses (kg) at r meters.
func GravitationalForce(m1, m2, r float64) (float64, error) {
	if !isFinite(r) || r <= 0 {
		return 0, fmt.Errorf("%w: r=%f m", ErrNonPositiveDistance, r)
	}
	return G * m1 * m2 / (r * r), nil
}

// TidalForce returns the differential acceleration 2GMR/r³ raised by an attractor of
// mass M (kg) at r meters on a body of radius R meters.
func TidalForce(M, R, r float64) (float64, error) {
	if !isFinite(r) || r <= 0 {
		return 0, fmt.Errorf("%w: r=%f m", ErrNonPositiveDistance, r)
	}
	return 2 * G * M * R / (r * r * r), nil
}

// TidalModel is the two-body bulge approximation of the tides raised on a primary
// by the Moon and the Sun.
type TidalModel struct {
	Primary, Moon, Sun Body
	LunarAmplitude     float64 // m
	SolarAmplitude     float64 // m
}

// NewTidalModel returns the model for the Earth.
func NewTidalModel() TidalModel {
	return TidalModel{Primary: Earth, Moon: Moon, Sun: Sun, LunarAmplitude: DefaultLunarAmplitude, SolarAmplitude: DefaultSolarAmplitude}
}

// Forces returns the tidal accelerations for the provided center-to-center distances (km).
func (m TidalModel) Forces(moonDist, sunDist float64) (TideSample, error) {
	R := m.Primary.Radius * 1e3
	lunar, err := TidalForce(m.Moon.Mass, R, moonDist*1e3)
	if err != nil {
		return TideSample{}, fmt.Errorf("lunar tide: %w", err)
	}
	solar, err := TidalForce(m.Sun.Mass, R, sunDist*1e3)
	if err != nil {
		return TideSample{}, fmt.Errorf("solar tide: %w", err)
	}
	s := TideSample{Lunar: lunar, Solar: solar, Total: lunar + solar}
	if solar > 0 {
		s.Ratio = lunar / solar
	}
	return s, nil
}

// Height returns the bulge height at a latitude and longitude (degrees) of the primary
// spun by rotation (radians). The Moon and Sun vectors are relative to the primary's
// center. Each attractor raises amplitude × cos(2θ), where θ is the angle between the
// surface point and the attractor: both the sub-attractor point and its antipode bulge.
func (m TidalModel) Height(latitude, longitude, rotation float64, moon, sun mgl64.Vec3) (TideHeight, error) {
	p := SurfacePoint(latitude, longitude, rotation, m.Primary.Radius)
	θm, err := AngleBetween(p, moon)
	if err != nil {
		return TideHeight{}, fmt.Errorf("lunar bulge: %w", err)
	}
	θs, err := AngleBetween(p, sun)
	if err != nil {
		return TideHeight{}, fmt.Errorf("solar bulge: %w", err)
	}
	h := TideHeight{Lunar: m.LunarAmplitude * math.Cos(2*θm), Solar: m.SolarAmplitude * math.Cos(2*θs)}
	h.Total = h.Lunar + h.Solar
	return h, nil
}

// MaxHeight returns the bound of the absolute total height.
func (m TidalModel) MaxHeight() float64 {
	return math.Abs(m.LunarAmplitude) + math.Abs(m.SolarAmplitude)
}

// TideStrength returns the relative tidal range for a lunar phase fraction:
// 1.4 when the Sun and Moon are aligned (new and full moon), 0.6 at the quarters.
func TideStrength(phase float64) float64 {
	return 1.0 + 0.4*math.Cos(2*twoPi*phase)
}

// ClassifyTide returns the tide kind for a lunar phase fraction.
func ClassifyTide(phase float64) TideKind {
	switch s := TideStrength(phase); {
	case s > springThreshold:
		return SpringTide
	case s < neapThreshold:
		return NeapTide
	default:
		return NormalTide
	}
}
