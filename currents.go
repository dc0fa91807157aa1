package orrery

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultCurrentDelta is the finite-difference step in degrees.
	DefaultCurrentDelta = 0.1
	// DefaultCurrentScale converts a height gradient (m per degree) to a flow speed.
	DefaultCurrentScale = 100.0
)

// CurrentVector is a horizontal flow estimate. East and North are the velocity
// components; Magnitude is the gradient norm times the scale.
type CurrentVector struct {
	East, North float64
	Magnitude   float64
}

// CurrentEstimator estimates ocean currents from the gradient of the bulge height:
// water flows from high to low potential.
type CurrentEstimator struct {
	Model TidalModel
	Delta float64 // degrees
	Scale float64
}

// NewCurrentEstimator returns an estimator with the default step and scale.
func NewCurrentEstimator(model TidalModel) CurrentEstimator {
	return CurrentEstimator{Model: model, Delta: DefaultCurrentDelta, Scale: DefaultCurrentScale}
}

// At returns the current at the provided latitude and longitude (degrees). When the
// northward offset would cross the pole, a backward difference is used instead.
func (e CurrentEstimator) At(latitude, longitude, rotation float64, moon, sun mgl64.Vec3) (CurrentVector, error) {
	if !isFinite(e.Delta) || e.Delta <= 0 {
		return CurrentVector{}, fmt.Errorf("current estimator: %w (Δ=%f)", ErrNonPositiveDistance, e.Delta)
	}
	height := func(lat, lon float64) (float64, error) {
		h, err := e.Model.Height(lat, lon, rotation, moon, sun)
		return h.Total, err
	}
	center, err := height(latitude, longitude)
	if err != nil {
		return CurrentVector{}, err
	}
	east, err := height(latitude, longitude+e.Delta)
	if err != nil {
		return CurrentVector{}, err
	}
	var gradNorth float64
	if latitude+e.Delta > 90 {
		south, err := height(latitude-e.Delta, longitude)
		if err != nil {
			return CurrentVector{}, err
		}
		gradNorth = (center - south) / e.Delta
	} else {
		north, err := height(latitude+e.Delta, longitude)
		if err != nil {
			return CurrentVector{}, err
		}
		gradNorth = (north - center) / e.Delta
	}
	gradEast := (east - center) / e.Delta
	return CurrentVector{
		East:      -gradEast * e.Scale,
		North:     -gradNorth * e.Scale,
		Magnitude: math.Hypot(gradEast, gradNorth) * e.Scale,
	}, nil
}

// Deflection is the side towards which the Coriolis effect deflects a flow.
type Deflection uint8

const (
	// DeflectNone on the equator.
	DeflectNone Deflection = iota
	// DeflectRight in the northern hemisphere.
	DeflectRight
	// DeflectLeft in the southern hemisphere.
	DeflectLeft
)

// MarshalText implements encoding.TextMarshaler.
func (d Deflection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Deflection) String() string {
	switch d {
	case DeflectNone:
		return "none"
	case DeflectRight:
		return "right"
	case DeflectLeft:
		return "left"
	}
	return fmt.Sprintf("Deflection(%d)", uint8(d))
}

// Coriolis is the Coriolis deflection of a current.
type Coriolis struct {
	Parameter float64 // f, in rad/s
	Magnitude float64 // |f| × speed
	Direction Deflection
}

// CoriolisParameter returns f = 2Ω sin(latitude) for a latitude in degrees.
func CoriolisParameter(latitude float64) float64 {
	return 2 * EarthRotationRate * math.Sin(latitude*deg2rad)
}

// Deflect returns the Coriolis deflection of the provided current at a latitude (degrees).
// Only the side is given, the velocity vector is not rotated.
func Deflect(latitude float64, v CurrentVector) Coriolis {
	f := CoriolisParameter(latitude)
	c := Coriolis{Parameter: f, Magnitude: math.Abs(f) * v.Magnitude}
	switch {
	case latitude > 0:
		c.Direction = DeflectRight
	case latitude < 0:
		c.Direction = DeflectLeft
	}
	return c
}
