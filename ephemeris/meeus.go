// Package ephemeris provides external Moon states used to override the internal
// lunar ephemeris of the engine.
package ephemeris

import (
	"context"
	"math"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/deltat"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// MeeusSource is the source name of the Meeus provider.
const MeeusSource = "meeus"

// Meeus computes the geocentric Moon from the ELP-2000/82 truncated series of
// Astronomical Algorithms (ch. 47) and the Sun from the low precision solar theory
// (ch. 25). It never fails.
//
// The override longitude is the elongation in ecliptic longitude (λ − λ☉) within
// [0, 360): zero at new moon and 180 at full moon.
type Meeus struct{}

// MoonOverride implements orrery.EphemerisProvider.
func (Meeus) MoonOverride(ctx context.Context, t time.Time) (*orrery.MoonOverride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jde := JDE(t)
	λ, β, Δ := moonposition.Position(jde)
	T := base.J2000Century(jde)
	λ0 := solar.ApparentLongitude(T)
	R := solar.Radius(T) * orrery.AU
	return &orrery.MoonOverride{
		Longitude:    unit.PMod(λ.Deg()-λ0.Deg(), 360),
		Illumination: base.Illuminated(PhaseAngle(λ, β, Δ, λ0, R)) * 100,
		Distance:     Δ,
		Source:       MeeusSource,
		Fetched:      time.Now().UTC(),
	}, nil
}

// PhaseAngle returns the Sun-Moon-Earth angle from the geocentric ecliptic
// coordinates of the Moon (λ, β, distance Δ) and the Sun (λ0, distance R), with Δ
// and R in the same unit. The Sun's latitude is neglected.
func PhaseAngle(λ, β unit.Angle, Δ float64, λ0 unit.Angle, R float64) unit.Angle {
	cψ := β.Cos() * (λ - λ0).Cos()
	sψ := math.Sqrt(1 - cψ*cψ)
	return unit.Angle(math.Atan2(R*sψ, Δ-R*cψ))
}

// JDE returns the Julian ephemeris day (terrestrial time) of a UTC time.
func JDE(t time.Time) float64 {
	jd := orrery.TimeToJD(t)
	return jd + DeltaT(jd)/orrery.Day
}

// DeltaT returns TT − UT in seconds at a Julian date, from table 10.A of
// Astronomical Algorithms between 1620 and 2010 and from the polynomial
// approximations outside of it.
func DeltaT(jd float64) float64 {
	switch y := base.JDEToJulianYear(jd); {
	case y < 948:
		return deltat.PolyBefore948(y).Sec()
	case y < 1620:
		return deltat.Poly948to1600(y).Sec()
	case y <= 2010:
		return deltat.Interp10A(jd).Sec()
	default:
		return deltat.PolyAfter2000(y).Sec()
	}
}
