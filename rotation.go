package orrery

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// The reference frame is the renderer's: orbits lie in the X-Z plane and +Y is north.

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v mgl64.Vec3) mgl64.Vec3 {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
	return mgl64.Vec3{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// Orientation returns the body frame rotation for the provided axial tilt (degrees)
// and spin angle (radians): the spin about the polar axis followed by the static tilt.
func Orientation(tilt, spin float64) *mat.Dense {
	var o mat.Dense
	o.Mul(R3(tilt*deg2rad), R2(spin))
	return &o
}

// SurfacePoint converts a latitude and longitude (degrees) on a spinning body to a
// vector of the provided radius. The rotation (radians) is added to the longitude.
func SurfacePoint(latitude, longitude, rotation, radius float64) mgl64.Vec3 {
	sLat, cLat := math.Sincos(latitude * deg2rad)
	sLong, cLong := math.Sincos(longitude*deg2rad + rotation)
	return mgl64.Vec3{radius * cLat * cLong, radius * sLat, radius * cLat * sLong}
}
