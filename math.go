package orrery

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats/scalar"
)

const (
	deg2rad = math.Pi / 180
	twoPi   = 2 * math.Pi
)

var (
	// ErrNonFinite is returned when an input is NaN or infinite.
	ErrNonFinite = errors.New("non-finite value")
	// ErrZeroVector is returned when a direction is requested from a zero-length vector.
	ErrZeroVector = errors.New("zero-length vector")
)

// isFinite returns whether all the provided values are neither NaN nor infinite.
func isFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// wrapAngle returns the provided angle in radians within [0, 2π).
func wrapAngle(a float64) float64 {
	w := unit.PMod(a, twoPi)
	if w >= twoPi {
		// Tiny negative inputs round up to 2π.
		return 0
	}
	return w
}

// fraction returns the floor-based fractional part of x, within [0, 1).
func fraction(x float64) float64 {
	f := unit.PMod(x, 1)
	if f >= 1 {
		return 0
	}
	return f
}

// AngleBetween returns the angle in radians between two vectors.
func AngleBetween(a, b mgl64.Vec3) (float64, error) {
	na, nb := a.Len(), b.Len()
	if scalar.EqualWithinAbs(na, 0, 1e-12) || scalar.EqualWithinAbs(nb, 0, 1e-12) {
		return 0, ErrZeroVector
	}
	cosθ := a.Dot(b) / (na * nb)
	// Rounding can push the cosine slightly out of the acos domain.
	cosθ = math.Max(-1, math.Min(1, cosθ))
	return math.Acos(cosθ), nil
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	return wrapAngle(a * deg2rad)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	return wrapAngle(a) / deg2rad
}
