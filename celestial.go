package orrery

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
	// Day is one mean solar day in seconds.
	Day = 86400.0
)

// ErrUnknownBody is returned when a body name is not part of the catalogue.
var ErrUnknownBody = errors.New("unknown body")

// BodyKind selects how a body's position is resolved.
type BodyKind uint8

const (
	// Stationary bodies sit at the origin and never orbit (the Sun).
	Stationary BodyKind = iota
	// SunOrbiting bodies circle the origin.
	SunOrbiting
	// ParentOrbiting bodies circle the resolved position of their parent body.
	ParentOrbiting
)

// MarshalText implements encoding.TextMarshaler.
func (k BodyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k BodyKind) String() string {
	switch k {
	case Stationary:
		return "stationary"
	case SunOrbiting:
		return "sun-orbiting"
	case ParentOrbiting:
		return "parent-orbiting"
	}
	return fmt.Sprintf("BodyKind(%d)", uint8(k))
}

// Body defines a tracked celestial body.
// Periods are in seconds; a negative rotation period is a retrograde spin.
type Body struct {
	Name           string
	Kind           BodyKind
	Parent         string  // Only used by ParentOrbiting bodies
	Radius         float64 // Mean radius (km)
	Mass           float64 // kg
	Distance       float64 // Mean orbital distance to the parent or the origin (km)
	OrbitalPeriod  float64
	RotationPeriod float64
	Tilt           float64 // Axial tilt (degrees)
	Angle          float64 // Orbital angle at the start of the simulation (radians)
	Longitude      float64 // Mean longitude at J2000.0 (degrees), used by SeedAngles
}

// GM returns the gravitational parameter in m^3/s^2.
func (b Body) GM() float64 {
	return G * b.Mass
}

// Density returns the mean density in kg/m^3.
func (b Body) Density() float64 {
	r := b.Radius * 1e3
	return b.Mass / (4 / 3. * math.Pi * r * r * r)
}

// Orbits returns whether this body is expected to orbit something.
func (b Body) Orbits() bool {
	return b.Kind != Stationary
}

// String implements the Stringer interface.
func (b Body) String() string {
	return b.Name + " body"
}

// Equals returns whether the provided body is the same.
func (b Body) Equals(o Body) bool {
	return b.Name == o.Name && b.Kind == o.Kind && b.Radius == o.Radius && b.Mass == o.Mass && b.Distance == o.Distance
}

// BodyFromString returns the catalogue body from its name.
func BodyFromString(name string) (Body, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sun":
		return Sun, nil
	case "mercury":
		return Mercury, nil
	case "venus":
		return Venus, nil
	case "earth":
		return Earth, nil
	case "moon", "luna":
		return Moon, nil
	case "mars":
		return Mars, nil
	case "jupiter":
		return Jupiter, nil
	case "saturn":
		return Saturn, nil
	case "uranus":
		return Uranus, nil
	case "neptune":
		return Neptune, nil
	default:
		return Body{}, fmt.Errorf("%w: '%s'", ErrUnknownBody, name)
	}
}

// SolarSystem returns the full catalogue, parents listed before their satellites.
func SolarSystem() []Body {
	return []Body{Sun, Mercury, Venus, Earth, Moon, Mars, Jupiter, Saturn, Uranus, Neptune}
}

/* Definitions */

// Sun is our closest star.
var Sun = Body{Name: "Sun", Kind: Stationary, Radius: 695700, Mass: 1.98847e30, RotationPeriod: 25.38 * Day, Tilt: 7.25}

// Mercury is fast.
var Mercury = Body{Name: "Mercury", Kind: SunOrbiting, Radius: 2439.7, Mass: 3.3011e23, Distance: 57909050, OrbitalPeriod: 87.9691 * Day, RotationPeriod: 58.646 * Day, Tilt: 0.034, Longitude: 252.250906}

// Venus is poisonous and spins backwards.
var Venus = Body{Name: "Venus", Kind: SunOrbiting, Radius: 6051.8, Mass: 4.8675e24, Distance: 108208000, OrbitalPeriod: 224.701 * Day, RotationPeriod: -243.025 * Day, Tilt: 177.36, Longitude: 181.979801}

// Earth is home.
var Earth = Body{Name: "Earth", Kind: SunOrbiting, Radius: 6371.0, Mass: 5.97237e24, Distance: AU, OrbitalPeriod: 365.256363004 * Day, RotationPeriod: 86164.0905, Tilt: 23.44, Longitude: 100.466449}

// Moon raises most of our tides.
var Moon = Body{Name: "Moon", Kind: ParentOrbiting, Parent: "Earth", Radius: 1737.4, Mass: 7.342e22, Distance: MeanLunarDistance, OrbitalPeriod: 27.321661 * Day, RotationPeriod: 27.321661 * Day, Tilt: 6.687}

// Mars is the vacation place.
var Mars = Body{Name: "Mars", Kind: SunOrbiting, Radius: 3389.5, Mass: 6.4171e23, Distance: 227939200, OrbitalPeriod: 686.980 * Day, RotationPeriod: 1.025957 * Day, Tilt: 25.19, Longitude: 355.433275}

// Jupiter is big.
var Jupiter = Body{Name: "Jupiter", Kind: SunOrbiting, Radius: 69911, Mass: 1.8982e27, Distance: 778570000, OrbitalPeriod: 4332.59 * Day, RotationPeriod: 0.41354 * Day, Tilt: 3.13, Longitude: 34.351484}

// Saturn floats and that's really cool.
var Saturn = Body{Name: "Saturn", Kind: SunOrbiting, Radius: 58232, Mass: 5.6834e26, Distance: 1433530000, OrbitalPeriod: 10759.22 * Day, RotationPeriod: 0.444 * Day, Tilt: 26.73, Longitude: 50.077471}

// Uranus rolls on its side.
var Uranus = Body{Name: "Uranus", Kind: SunOrbiting, Radius: 25362, Mass: 8.6810e25, Distance: 2872460000, OrbitalPeriod: 30688.5 * Day, RotationPeriod: -0.71833 * Day, Tilt: 97.77, Longitude: 314.055005}

// Neptune is the last one out.
var Neptune = Body{Name: "Neptune", Kind: SunOrbiting, Radius: 24622, Mass: 1.02413e26, Distance: 4495060000, OrbitalPeriod: 60195 * Day, RotationPeriod: 0.6713 * Day, Tilt: 28.32, Longitude: 304.348665}
