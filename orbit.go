package orrery

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/solar"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidPeriod is returned for a zero, negative or non-finite orbital period.
	ErrInvalidPeriod = errors.New("invalid orbital period")
	// ErrNonPositiveDistance is returned when a distance must be strictly positive.
	ErrNonPositiveDistance = errors.New("distance must be strictly positive")
)

// BodyState is the propagated state of a body.
type BodyState struct {
	Body
	Angle    float64    // Orbital angle in [0, 2π)
	Position mgl64.Vec3 // Display-scaled position
	Static   bool       // Set when the body is misconfigured and held in place
	rotation float64    // Unbounded spin accumulator
	parent   int        // Index of the parent state, -1 for the origin
	physical mgl64.Vec3 // Unscaled position in km
}

// RotationAngle returns the spin angle within [0, 2π).
func (s BodyState) RotationAngle() float64 {
	return wrapAngle(s.rotation)
}

// Physical returns the unscaled position in km.
func (s BodyState) Physical() mgl64.Vec3 {
	return s.physical
}

// Orientation returns the body frame rotation (spin then static tilt).
func (s BodyState) Orientation() *mat.Dense {
	return Orientation(s.Tilt, s.RotationAngle())
}

func (s BodyState) String() string {
	return fmt.Sprintf("%s θ=%.4f rot=%.4f pos=%v", s.Name, s.Angle, s.RotationAngle(), s.Position)
}

// resolver places a body from its angle and its parent's position.
type resolver func(s BodyState, parent mgl64.Vec3, dist float64) mgl64.Vec3

// planar is the circular orbit convention: distance × (cos θ, 0, sin θ).
func planar(s BodyState, parent mgl64.Vec3, dist float64) mgl64.Vec3 {
	sθ, cθ := math.Sincos(s.Angle)
	return parent.Add(mgl64.Vec3{dist * cθ, 0, dist * sθ})
}

var resolvers = map[BodyKind]resolver{
	Stationary: func(BodyState, mgl64.Vec3, float64) mgl64.Vec3 {
		return mgl64.Vec3{}
	},
	SunOrbiting: func(s BodyState, _ mgl64.Vec3, dist float64) mgl64.Vec3 {
		return planar(s, mgl64.Vec3{}, dist)
	},
	ParentOrbiting: planar,
}

// SeedAngles returns a copy of the bodies with their initial angles set for the
// Julian date jd. The Earth is placed opposite the true Sun (ch. 25 of
// Astronomical Algorithms), the other planets at their mean longitude and the Moon
// at the mean synodic phase from the Sun, so that the geometry agrees with the
// lunar ephemeris. Other bodies keep their angle.
func SeedAngles(bodies []Body, jd float64) []Body {
	seeded := make([]Body, len(bodies))
	copy(seeded, bodies)
	angles := make(map[string]float64, len(seeded))
	for i := range seeded {
		b := &seeded[i]
		switch {
		case b.Name == primaryName && b.Kind == SunOrbiting:
			s, _ := solar.True(base.J2000Century(jd))
			b.Angle = wrapAngle(s.Rad() + math.Pi)
		case b.Kind == SunOrbiting && isFinite(b.OrbitalPeriod) && b.OrbitalPeriod > 0:
			b.Angle = wrapAngle(Deg2rad(b.Longitude) + twoPi*(jd-base.J2000)*Day/b.OrbitalPeriod)
		case b.Name == moonName && b.Kind == ParentOrbiting:
			if parent, ok := angles[b.Parent]; ok {
				b.Angle = wrapAngle(parent + math.Pi + twoPi*PhaseFraction(jd))
			}
		}
		angles[b.Name] = b.Angle
	}
	return seeded
}

// Propagator advances the orbital and spin angles of a set of bodies.
type Propagator struct {
	states []BodyState
	index  map[string]int
	scale  ScaleMapper
	logger log.Logger
}

// NewPropagator returns a propagator for the provided bodies. A parent must be listed
// before its satellites. Misconfigured bodies are logged and held static.
func NewPropagator(bodies []Body, scale ScaleMapper, logger log.Logger) *Propagator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	p := &Propagator{states: make([]BodyState, 0, len(bodies)), index: make(map[string]int, len(bodies)), scale: scale, logger: log.With(logger, "subsys", "orbit")}
	for _, b := range bodies {
		s := BodyState{Body: b, Angle: wrapAngle(b.Angle), parent: -1}
		if !isFinite(b.Angle) {
			s.Angle = 0
		}
		if err := p.validate(&s); err != nil {
			level.Error(p.logger).Log("msg", "body held static", "body", b.Name, "err", err)
			s.Static = true
		}
		p.index[b.Name] = len(p.states)
		p.states = append(p.states, s)
	}
	p.Resolve()
	return p
}

func (p *Propagator) validate(s *BodyState) error {
	if s.Kind == ParentOrbiting {
		idx, ok := p.index[s.Parent]
		if !ok {
			return fmt.Errorf("parent '%s' of %s: %w", s.Parent, s.Name, ErrUnknownBody)
		}
		s.parent = idx
	}
	if !s.Orbits() {
		return nil
	}
	if !isFinite(s.OrbitalPeriod) || s.OrbitalPeriod <= 0 {
		return fmt.Errorf("%w: %f s", ErrInvalidPeriod, s.OrbitalPeriod)
	}
	if !isFinite(s.Distance) || s.Distance <= 0 {
		return fmt.Errorf("%w: %f km", ErrNonPositiveDistance, s.Distance)
	}
	return nil
}

// Advance propagates all bodies by dt simulated seconds. A valid Moon override
// replaces the propagated angle of parent-orbiting bodies: its longitude is the
// elongation from the Sun as seen from the parent.
func (p *Propagator) Advance(dt float64, moon *MoonOverride) {
	if !isFinite(dt) {
		level.Warn(p.logger).Log("msg", "propagation skipped", "dt", dt, "err", ErrNonFinite)
		return
	}
	useOverride := moon.Valid()
	for i := range p.states {
		s := &p.states[i]
		if s.RotationPeriod != 0 && isFinite(s.RotationPeriod) {
			s.rotation += twoPi / s.RotationPeriod * dt
		}
		if !s.Orbits() || s.Static {
			continue
		}
		if s.Kind == ParentOrbiting && useOverride {
			// The override longitude is an elongation from the Sun, which is seen from
			// the parent at the parent's angle + π. Parents are advanced first.
			s.Angle = wrapAngle(p.states[s.parent].Angle + math.Pi + Deg2rad(moon.Longitude))
			continue
		}
		s.Angle = wrapAngle(s.Angle + twoPi/s.OrbitalPeriod*dt)
	}
	p.Resolve()
}

// Resolve recomputes every position from the current angles.
func (p *Propagator) Resolve() {
	for i := range p.states {
		s := &p.states[i]
		var parentPos, parentPhys mgl64.Vec3
		if s.parent >= 0 {
			parentPos = p.states[s.parent].Position
			parentPhys = p.states[s.parent].physical
		}
		resolve := resolvers[s.Kind]
		if resolve == nil {
			resolve = resolvers[Stationary]
		}
		dist := s.Distance
		if dist < 0 || !isFinite(dist) {
			dist = 0
		}
		s.Position = resolve(*s, parentPos, p.scale.Map(dist))
		s.physical = resolve(*s, parentPhys, dist)
	}
}

// States returns a copy of all the body states.
func (p *Propagator) States() []BodyState {
	states := make([]BodyState, len(p.states))
	copy(states, p.states)
	return states
}

// State returns the state of the named body.
func (p *Propagator) State(name string) (BodyState, bool) {
	idx, ok := p.index[name]
	if !ok {
		return BodyState{}, false
	}
	return p.states[idx], true
}

// Relative returns the unscaled vector (km) from one body to another.
func (p *Propagator) Relative(from, to string) (mgl64.Vec3, error) {
	f, ok := p.State(from)
	if !ok {
		return mgl64.Vec3{}, fmt.Errorf("%w: '%s'", ErrUnknownBody, from)
	}
	t, ok := p.State(to)
	if !ok {
		return mgl64.Vec3{}, fmt.Errorf("%w: '%s'", ErrUnknownBody, to)
	}
	return t.physical.Sub(f.physical), nil
}
