package orrery

import (
	"fmt"
	"math"
	"time"
)

const (
	// SynodicMonth is the mean time between two new moons, in days.
	SynodicMonth = 29.53058867
	// MeanLunarDistance is the mean Earth-Moon distance in km.
	MeanLunarDistance = 384400.0
	// LunarDistanceAmplitude approximates the eccentricity of the lunar orbit, in km.
	LunarDistanceAmplitude = 21000.0
	// ReferenceNewMoon is the Julian Date of the new moon of 2000 January 6, 18:14 UTC.
	ReferenceNewMoon = 2451550.2597
)

// PhaseName is one of the eight named lunar phases.
type PhaseName uint8

// Phase names, in the order they occur over a synodic month.
const (
	NewMoon PhaseName = iota
	WaxingCrescent
	FirstQuarter
	WaxingGibbous
	FullMoon
	WaningGibbous
	LastQuarter
	WaningCrescent
)

// MarshalText implements encoding.TextMarshaler.
func (p PhaseName) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p PhaseName) String() string {
	switch p {
	case NewMoon:
		return "New Moon"
	case WaxingCrescent:
		return "Waxing Crescent"
	case FirstQuarter:
		return "First Quarter"
	case WaxingGibbous:
		return "Waxing Gibbous"
	case FullMoon:
		return "Full Moon"
	case WaningGibbous:
		return "Waning Gibbous"
	case LastQuarter:
		return "Last Quarter"
	case WaningCrescent:
		return "Waning Crescent"
	}
	return fmt.Sprintf("PhaseName(%d)", uint8(p))
}

// PhaseThresholds are the illumination boundaries (percent) used to name a phase.
type PhaseThresholds struct {
	New         float64 // Below: new moon
	QuarterLow  float64 // Below: crescent
	QuarterHigh float64 // Above: gibbous
	Full        float64 // Above: full moon
}

// DefaultPhaseThresholds returns the 5/45/55/95 % boundaries.
func DefaultPhaseThresholds() PhaseThresholds {
	return PhaseThresholds{New: 5, QuarterLow: 45, QuarterHigh: 55, Full: 95}
}

// Valid returns whether the thresholds are ordered within [0, 100].
func (t PhaseThresholds) Valid() bool {
	return 0 <= t.New && t.New <= t.QuarterLow && t.QuarterLow <= t.QuarterHigh && t.QuarterHigh <= t.Full && t.Full <= 100
}

// Classify names the phase from the illumination percentage. Illumination alone
// cannot tell waxing from waning: that is given by the phase fraction, since the
// illumination rises while the fraction is below one half.
func (t PhaseThresholds) Classify(illumination, phase float64) PhaseName {
	waxing := fraction(phase) < 0.5
	switch {
	case illumination < t.New:
		return NewMoon
	case illumination > t.Full:
		return FullMoon
	case illumination < t.QuarterLow:
		if waxing {
			return WaxingCrescent
		}
		return WaningCrescent
	case illumination <= t.QuarterHigh:
		if waxing {
			return FirstQuarter
		}
		return LastQuarter
	default:
		if waxing {
			return WaxingGibbous
		}
		return WaningGibbous
	}
}

// PhaseFraction returns the fraction of the synodic month elapsed at the provided
// Julian Date since the last new moon, within [0, 1) for any date.
func PhaseFraction(jd float64) float64 {
	return fraction((jd - ReferenceNewMoon) / SynodicMonth)
}

// Illumination returns the illuminated percentage of the disk for a phase fraction.
func Illumination(phase float64) float64 {
	return (1 - math.Cos(twoPi*phase)) / 2 * 100
}

// LunarPhase is an immutable snapshot of the lunar ephemeris.
type LunarPhase struct {
	JD           float64
	Phase        float64 // [0, 1)
	Illumination float64 // [0, 100]
	Age          float64 // Days since the last new moon
	Distance     float64 // km
	Longitude    float64 // Degrees, phase fraction × 360 unless overridden
	Name         PhaseName
	NextFull     time.Time
	NextNew      time.Time
	Source       string // "internal" or the name of the override source
}

// Waxing returns whether the illuminated fraction is increasing.
func (p LunarPhase) Waxing() bool {
	return p.Phase < 0.5
}

func (p LunarPhase) String() string {
	return fmt.Sprintf("%s (phase=%.4f illum=%.1f%% age=%.2fd dist=%.0fkm)", p.Name, p.Phase, p.Illumination, p.Age, p.Distance)
}

// MoonOverride is an externally supplied Moon state.
type MoonOverride struct {
	Longitude    float64 // Degrees
	Illumination float64 // Percent
	Distance     float64 // km
	Source       string
	Fetched      time.Time
}

// Valid returns whether the override can be used in place of the internal computation.
func (o *MoonOverride) Valid() bool {
	if o == nil || !isFinite(o.Longitude, o.Illumination, o.Distance) {
		return false
	}
	return o.Distance > 0 && o.Illumination >= 0 && o.Illumination <= 100
}

// LunarEphemeris computes lunar phase snapshots from Julian Dates.
type LunarEphemeris struct {
	Thresholds PhaseThresholds
}

// NewLunarEphemeris returns an ephemeris with the default thresholds.
func NewLunarEphemeris() LunarEphemeris {
	return LunarEphemeris{Thresholds: DefaultPhaseThresholds()}
}

// Snapshot returns the lunar phase at the provided Julian Date.
func (e LunarEphemeris) Snapshot(jd float64) LunarPhase {
	return e.SnapshotWith(jd, nil)
}

// SnapshotWith returns the lunar phase at the provided Julian Date. A valid override
// replaces the illumination, distance and longitude; otherwise it is ignored.
func (e LunarEphemeris) SnapshotWith(jd float64, override *MoonOverride) LunarPhase {
	phase := PhaseFraction(jd)
	p := LunarPhase{
		JD:           jd,
		Phase:        phase,
		Illumination: Illumination(phase),
		Age:          phase * SynodicMonth,
		Distance:     MeanLunarDistance + LunarDistanceAmplitude*math.Sin(twoPi*phase),
		Longitude:    phase * 360,
		Source:       "internal",
	}
	toFull := 0.5 - phase
	if toFull <= 0 {
		toFull++
	}
	p.NextFull = JDToTime(jd + toFull*SynodicMonth)
	p.NextNew = JDToTime(jd + (1-phase)*SynodicMonth)
	if override.Valid() {
		p.Illumination = override.Illumination
		p.Distance = override.Distance
		p.Longitude = override.Longitude
		p.Source = override.Source
	}
	p.Name = e.Thresholds.Classify(p.Illumination, phase)
	return p
}
