package orrery

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidResolution is returned when a grid resolution is not strictly positive.
var ErrInvalidResolution = errors.New("grid resolution must be strictly positive")

// M2Period is the period of the principal lunar semi-diurnal constituent in seconds.
const M2Period = 12.4206012 * 3600

// WaveParams define the traveling wave added on top of the tidal bulge. It is purely
// cosmetic: sin(t·ω + longitude·k) × amplitude.
type WaveParams struct {
	Amplitude float64 // m
	Omega     float64 // rad/s
	K         float64 // per radian of longitude
}

// DefaultWaveParams returns a 10 cm wave traveling at the M2 rate.
func DefaultWaveParams() WaveParams {
	return WaveParams{Amplitude: 0.1, Omega: twoPi / M2Period, K: 2}
}

// offset returns the wave height at a longitude (degrees) and time.
func (w WaveParams) offset(longitude float64, t time.Time) float64 {
	sec := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return math.Sin(sec*w.Omega+longitude*deg2rad*w.K) * w.Amplitude
}

// GridLatLon returns the latitude and longitude (degrees) of the cell (i, j) of a grid
// of the provided resolution.
func GridLatLon(i, j, resolution int) (latitude, longitude float64) {
	r := float64(resolution)
	return float64(i)/r*180 - 90, float64(j)/r*360 - 180
}

// GridStats summarizes a displacement grid.
type GridStats struct {
	Min, Max, Mean, StdDev float64
}

// DisplacementGrid is an R×R field of water heights (m) indexed by latitude (rows)
// and longitude (columns). A grid is never modified once generated.
type DisplacementGrid struct {
	Time       time.Time
	Resolution int
	heights    *mat.Dense
}

// Empty returns whether this grid holds no data.
func (g DisplacementGrid) Empty() bool {
	return g.heights == nil
}

// At returns the height of the cell (i, j).
func (g DisplacementGrid) At(i, j int) float64 {
	return g.heights.At(i, j)
}

// LatLon returns the latitude and longitude (degrees) of the cell (i, j).
func (g DisplacementGrid) LatLon(i, j int) (float64, float64) {
	return GridLatLon(i, j, g.Resolution)
}

// Values returns a copy of the heights in row-major order.
func (g DisplacementGrid) Values() []float64 {
	if g.Empty() {
		return nil
	}
	vals := make([]float64, 0, g.Resolution*g.Resolution)
	for i := 0; i < g.Resolution; i++ {
		vals = append(vals, g.heights.RawRowView(i)...)
	}
	return vals
}

// Stats returns the minimum, maximum, mean and standard deviation of the heights.
func (g DisplacementGrid) Stats() GridStats {
	vals := g.Values()
	if len(vals) == 0 {
		return GridStats{}
	}
	s := GridStats{Min: floats.Min(vals), Max: floats.Max(vals)}
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	if len(vals) == 1 {
		s.StdDev = 0
	}
	return s
}

// Gradient returns the height gradient (m per degree) of the cell (i, j) along
// latitude and longitude, from the grid itself. Longitude wraps around; latitude uses
// one-sided differences on the edges.
func (g DisplacementGrid) Gradient(i, j int) (north, east float64) {
	n := g.Resolution
	if n < 2 {
		return 0, 0
	}
	latStep := 180 / float64(n)
	lonStep := 360 / float64(n)
	east = (g.heights.At(i, (j+1)%n) - g.heights.At(i, (j-1+n)%n)) / (2 * lonStep)
	switch {
	case i == 0:
		north = (g.heights.At(1, j) - g.heights.At(0, j)) / latStep
	case i == n-1:
		north = (g.heights.At(n-1, j) - g.heights.At(n-2, j)) / latStep
	default:
		north = (g.heights.At(i+1, j) - g.heights.At(i-1, j)) / (2 * latStep)
	}
	return north, east
}

// GridGenerator samples the tidal model over a latitude/longitude grid of fixed resolution.
type GridGenerator struct {
	resolution int
	model      TidalModel
	wave       WaveParams
}

// NewGridGenerator returns a new generator. The resolution cannot change afterwards.
func NewGridGenerator(resolution int, model TidalModel, wave WaveParams) (*GridGenerator, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResolution, resolution)
	}
	return &GridGenerator{resolution: resolution, model: model, wave: wave}, nil
}

// Resolution returns the number of cells along each axis.
func (g *GridGenerator) Resolution() int {
	return g.resolution
}

// MaxAbs returns the bound on the absolute value of every generated cell.
func (g *GridGenerator) MaxAbs() float64 {
	return g.model.MaxHeight() + math.Abs(g.wave.Amplitude)
}

// Generate returns a freshly allocated grid for the Moon and Sun positions (km,
// relative to the primary's center), the primary's rotation (radians) and time t.
func (g *GridGenerator) Generate(moon, sun mgl64.Vec3, rotation float64, t time.Time) (DisplacementGrid, error) {
	heights := mat.NewDense(g.resolution, g.resolution, nil)
	for i := 0; i < g.resolution; i++ {
		for j := 0; j < g.resolution; j++ {
			lat, lon := GridLatLon(i, j, g.resolution)
			h, err := g.model.Height(lat, lon, rotation, moon, sun)
			if err != nil {
				return DisplacementGrid{}, fmt.Errorf("cell (%d, %d): %w", i, j, err)
			}
			heights.Set(i, j, h.Total+g.wave.offset(lon, t))
		}
	}
	return DisplacementGrid{Time: t, Resolution: g.resolution, heights: heights}, nil
}
