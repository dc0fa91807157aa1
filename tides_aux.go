package orrery

import (
	"fmt"
	"math"
)

const (
	// SeaLevelPressure is the standard atmospheric pressure in Pa.
	SeaLevelPressure = 101325.0
	// AtmosphereScaleHeight is the isothermal scale height of the Earth atmosphere in m.
	AtmosphereScaleHeight = 8434.5

	fluidRocheFactor = 2.44
	rigidRocheFactor = 1.26
)

// RocheLimit returns the fluid Roche limit (same unit as radius) of a satellite of
// density ρm orbiting a primary of the provided radius and density ρM.
func RocheLimit(radius, ρM, ρm float64) (float64, error) {
	return roche(fluidRocheFactor, radius, ρM, ρm)
}

// RigidRocheLimit is the Roche limit of a rigid spherical satellite.
func RigidRocheLimit(radius, ρM, ρm float64) (float64, error) {
	return roche(rigidRocheFactor, radius, ρM, ρm)
}

func roche(factor, radius, ρM, ρm float64) (float64, error) {
	if !isFinite(radius, ρM, ρm) || radius <= 0 || ρM <= 0 || ρm <= 0 {
		return 0, fmt.Errorf("roche limit: %w (radius=%f, ρM=%f, ρm=%f)", ErrNonPositiveDistance, radius, ρM, ρm)
	}
	return factor * radius * math.Cbrt(ρM/ρm), nil
}

// BodyRocheLimit returns the fluid Roche limit (km) of a satellite around a primary.
func BodyRocheLimit(primary, satellite Body) (float64, error) {
	return RocheLimit(primary.Radius, primary.Density(), satellite.Density())
}

// LockingParams are the satellite properties used to estimate the tidal locking time.
type LockingParams struct {
	Spin float64 // Initial spin rate (rad/s)
	Q    float64 // Dissipation function
	K2   float64 // Tidal Love number
}

// DefaultLockingParams returns a rocky satellite initially spinning once every 12 hours.
func DefaultLockingParams() LockingParams {
	return LockingParams{Spin: twoPi / (12 * 3600), Q: 100, K2: 0.03}
}

// TidalLockingTime returns the time (s) for a satellite at distance (km) from its
// primary to become tidally locked: t = ω a⁶ I Q / (3 G m_p² k₂ R⁵), with I = 0.4 m_s R².
func TidalLockingTime(primary, satellite Body, distance float64, params LockingParams) (float64, error) {
	if !isFinite(distance) || distance <= 0 {
		return 0, fmt.Errorf("tidal locking: %w (a=%f km)", ErrNonPositiveDistance, distance)
	}
	if satellite.Radius <= 0 || primary.Mass <= 0 || params.K2 <= 0 {
		return 0, fmt.Errorf("tidal locking: invalid bodies %s/%s or k2=%f", primary, satellite, params.K2)
	}
	a := distance * 1e3
	R := satellite.Radius * 1e3
	I := 0.4 * satellite.Mass * R * R
	return math.Abs(params.Spin) * math.Pow(a, 6) * I * params.Q / (3 * G * primary.Mass * primary.Mass * params.K2 * math.Pow(R, 5)), nil
}

// AtmosphericPressurePerturbation returns the surface pressure change (Pa) caused by
// lifting the air column by the provided tidal height (m), hydrostatic approximation.
func AtmosphericPressurePerturbation(height float64) float64 {
	return SeaLevelPressure * height / AtmosphereScaleHeight
}
