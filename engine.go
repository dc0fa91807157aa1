package orrery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	primaryName = "Earth"
	moonName    = "Moon"
	sunName     = "Sun"
)

// ErrTidesUnavailable is returned by the tide and current queries when the Sun, the
// Earth or the Moon is not simulated.
var ErrTidesUnavailable = errors.New("tides unavailable: Sun, Earth and Moon must all be simulated")

// Frame is the state published after each tick.
type Frame struct {
	Time     time.Time
	JD       float64
	Speed    float64
	Bodies   []BodyState
	Rotation float64    // Spin angle of the Earth in radians
	Moon     mgl64.Vec3 // Moon relative to the Earth, km
	Sun      mgl64.Vec3 // Sun relative to the Earth, km
	Forces   TideSample
	Strength float64
	Tide     TideKind
	Lunar    LunarPhase
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProvider sets the external Moon provider.
func WithProvider(p EphemerisProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithRegisterer registers the engine metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = reg
	}
}

// Engine owns the whole simulation state. Tick must only be called by a single
// goroutine; every other method is safe for concurrent use.
type Engine struct {
	conf       Config
	logger     log.Logger
	provider   EphemerisProvider
	registerer prometheus.Registerer
	metrics    *engineMetrics

	// Owned by the tick.
	clock     *SimClock
	prop      *Propagator
	ephem     LunarEphemeris
	model     TidalModel
	grids     *GridGenerator
	gridLimit *rate.Limiter
	currents  CurrentEstimator
	tidal     bool

	// Published.
	frame    Latest[Frame]
	grid     Latest[DisplacementGrid]
	lunar    Latest[LunarPhase]
	override Latest[MoonOverride]
	jd       Latest[float64]
	speed    Latest[float64]
	water    Latest[bool]
}

// NewEngine returns a new engine. Configuration errors of a single feature (a
// misconfigured body, an invalid grid resolution) are logged and only disable that
// feature. An error is returned for an unknown body or when the metrics cannot be
// registered.
func NewEngine(conf Config, opts ...Option) (*Engine, error) {
	e := &Engine{conf: conf, logger: log.NewNopLogger(), metrics: newEngineMetrics()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = log.With(e.logger, "subsys", "engine")
	if err := e.metrics.register(e.registerer); err != nil {
		return nil, err
	}

	bodies, err := resolveBodies(conf.Bodies)
	if err != nil {
		return nil, err
	}
	e.clock = NewSimClock(conf.Start, conf.Speed, e.logger)
	e.prop = NewPropagator(SeedAngles(bodies, e.clock.JulianDate()), conf.Scale, e.logger)
	static := 0
	for _, s := range e.prop.States() {
		if s.Static {
			static++
		}
	}
	e.metrics.staticBodies.Set(float64(static))

	e.ephem = LunarEphemeris{Thresholds: conf.Lunar.Thresholds}
	if !e.ephem.Thresholds.Valid() {
		level.Error(e.logger).Log("msg", "invalid lunar thresholds, using defaults", "thresholds", fmt.Sprintf("%+v", conf.Lunar.Thresholds))
		e.ephem = NewLunarEphemeris()
	}

	e.model = NewTidalModel()
	e.tidal = true
	for _, name := range []string{primaryName, moonName, sunName} {
		b, ok := e.prop.State(name)
		if !ok {
			level.Warn(e.logger).Log("msg", "tides disabled", "body", name, "err", ErrUnknownBody)
			e.tidal = false
			continue
		}
		switch name {
		case primaryName:
			e.model.Primary = b.Body
		case moonName:
			e.model.Moon = b.Body
		case sunName:
			e.model.Sun = b.Body
		}
	}
	e.currents = CurrentEstimator{Model: e.model, Delta: conf.Currents.Delta, Scale: conf.Currents.Scale}

	if e.grids, err = NewGridGenerator(conf.Water.Resolution, e.model, conf.Water.Wave); err != nil {
		level.Error(e.logger).Log("msg", "water displacement disabled", "err", err)
		e.grids = nil
	}
	limit := rate.Inf
	if conf.Water.Rate > 0 {
		limit = rate.Limit(conf.Water.Rate)
	}
	e.gridLimit = rate.NewLimiter(limit, 1)
	e.water.Store(conf.Water.Enabled)
	e.speed.Store(e.clock.Speed())

	jd := e.clock.JulianDate()
	e.jd.Store(jd)
	e.publishLunar(e.ephem.Snapshot(jd))
	e.publish(e.buildFrame())
	return e, nil
}

// resolveBodies returns the named bodies, parents first. No names means the whole
// solar system.
func resolveBodies(names []string) ([]Body, error) {
	if len(names) == 0 {
		return SolarSystem(), nil
	}
	bodies := make([]Body, 0, len(names))
	for _, name := range names {
		b, err := BodyFromString(name)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, b)
	}
	slices.SortStableFunc(bodies, func(a, b Body) int {
		return boolToInt(a.Kind == ParentOrbiting) - boolToInt(b.Kind == ParentOrbiting)
	})
	return bodies, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Tick advances the simulation by delta real seconds and returns the new frame.
// Invalid deltas are logged and the last frame is returned unchanged.
func (e *Engine) Tick(delta float64) Frame {
	start := time.Now()
	if speed, ok := e.speed.Load(); ok && speed != e.clock.Speed() {
		e.clock.SetSpeed(speed)
	}
	override := e.currentOverride()
	dt, err := e.clock.Advance(delta)
	if err != nil {
		e.metrics.skipped.WithLabelValues(skipReason(err)).Inc()
		f, _ := e.frame.Load()
		return f
	}
	e.prop.Advance(dt, override)
	e.jd.Store(e.clock.JulianDate())

	f := e.buildFrame()
	if water, _ := e.water.Load(); water && e.grids != nil && e.tidal && e.gridLimit.Allow() {
		e.regenerateGrid(f)
	}
	e.publish(f)
	e.metrics.ticks.Inc()
	e.metrics.tickDuration.Observe(time.Since(start).Seconds())
	return f
}

// buildFrame assembles the frame from the current state and the latest lunar snapshot.
func (e *Engine) buildFrame() Frame {
	lunar, _ := e.lunar.Load()
	f := Frame{
		Time:     e.clock.Now(),
		JD:       e.clock.JulianDate(),
		Speed:    e.clock.Speed(),
		Bodies:   e.prop.States(),
		Lunar:    lunar,
		Strength: TideStrength(lunar.Phase),
		Tide:     ClassifyTide(lunar.Phase),
	}
	if !e.tidal {
		return f
	}
	earth, _ := e.prop.State(primaryName)
	f.Rotation = earth.RotationAngle()
	f.Moon, _ = e.prop.Relative(primaryName, moonName)
	f.Sun, _ = e.prop.Relative(primaryName, sunName)
	moonDist := lunar.Distance
	if moonDist <= 0 {
		moonDist = f.Moon.Len()
	}
	forces, err := e.model.Forces(moonDist, f.Sun.Len())
	if err != nil {
		level.Warn(e.logger).Log("msg", "tidal forces unavailable", "err", err)
		return f
	}
	f.Forces = forces
	return f
}

func (e *Engine) regenerateGrid(f Frame) {
	start := time.Now()
	grid, err := e.grids.Generate(f.Moon, f.Sun, f.Rotation, f.Time)
	if err != nil {
		level.Warn(e.logger).Log("msg", "grid regeneration failed", "err", err)
		e.metrics.grids.WithLabelValues("error").Inc()
		return
	}
	e.grid.Store(grid)
	e.metrics.grids.WithLabelValues("ok").Inc()
	e.metrics.gridDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) publish(f Frame) {
	e.frame.Store(f)
	e.metrics.tideStrength.Set(f.Strength)
	e.metrics.simulatedTime.Set(float64(f.Time.Unix()))
}

func (e *Engine) publishLunar(p LunarPhase) {
	e.lunar.Store(p)
	e.metrics.illumination.Set(p.Illumination)
	e.metrics.phase.Set(p.Phase)
}

// currentOverride returns the cached override, or nil when none is valid.
func (e *Engine) currentOverride() *MoonOverride {
	o, ok := e.override.Load()
	if !ok || !o.Valid() {
		return nil
	}
	return &o
}

// Frame returns the latest published frame.
func (e *Engine) Frame() Frame {
	f, _ := e.frame.Load()
	return f
}

// Grid returns the latest displacement grid, if any was generated.
func (e *Engine) Grid() (DisplacementGrid, bool) {
	return e.grid.Load()
}

// Lunar returns the latest lunar snapshot.
func (e *Engine) Lunar() LunarPhase {
	p, _ := e.lunar.Load()
	return p
}

// Override returns the cached Moon override, if any.
func (e *Engine) Override() (MoonOverride, bool) {
	return e.override.Load()
}

// TideAt returns the bulge height at a latitude and longitude (degrees) in the latest frame.
func (e *Engine) TideAt(latitude, longitude float64) (TideHeight, error) {
	if !e.tidal {
		return TideHeight{}, ErrTidesUnavailable
	}
	f := e.Frame()
	return e.model.Height(latitude, longitude, f.Rotation, f.Moon, f.Sun)
}

// CurrentAt returns the ocean current and its Coriolis deflection at a latitude and
// longitude (degrees) in the latest frame.
func (e *Engine) CurrentAt(latitude, longitude float64) (CurrentVector, Coriolis, error) {
	if !e.tidal {
		return CurrentVector{}, Coriolis{}, ErrTidesUnavailable
	}
	f := e.Frame()
	v, err := e.currents.At(latitude, longitude, f.Rotation, f.Moon, f.Sun)
	if err != nil {
		return CurrentVector{}, Coriolis{}, err
	}
	return v, Deflect(latitude, v), nil
}

// SetSpeed requests a new time speed multiplier, applied at the start of the next tick.
func (e *Engine) SetSpeed(speed float64) error {
	if !isFinite(speed) {
		return fmt.Errorf("speed %f: %w", speed, ErrNonFinite)
	}
	e.speed.Store(speed)
	return nil
}

// SetWaterEffects enables or disables the displacement grid regeneration.
func (e *Engine) SetWaterEffects(enabled bool) {
	e.water.Store(enabled)
}

// RefreshEphemeris computes a new lunar snapshot at the latest simulated time.
func (e *Engine) RefreshEphemeris() LunarPhase {
	jd, _ := e.jd.Load()
	p := e.ephem.SnapshotWith(jd, e.currentOverride())
	e.publishLunar(p)
	level.Debug(e.logger).Log("msg", "lunar ephemeris refreshed", "phase", p.Name, "illumination", p.Illumination, "source", p.Source)
	return p
}

// RefreshOverride asks the provider for the Moon at the latest simulated time. Only
// valid overrides replace the cached one.
func (e *Engine) RefreshOverride(ctx context.Context) {
	if e.provider == nil {
		return
	}
	jd, _ := e.jd.Load()
	o, err := e.provider.MoonOverride(ctx, JDToTime(jd))
	switch {
	case err != nil:
		level.Warn(e.logger).Log("msg", "moon override fetch failed", "err", err)
		e.metrics.overrides.WithLabelValues("error").Inc()
	case o == nil:
		e.metrics.overrides.WithLabelValues("empty").Inc()
	case !o.Valid():
		level.Warn(e.logger).Log("msg", "moon override dropped", "source", o.Source, "longitude", o.Longitude, "illumination", o.Illumination, "distance", o.Distance)
		e.metrics.overrides.WithLabelValues("invalid").Inc()
	default:
		e.override.Store(*o)
		e.metrics.overrides.WithLabelValues("valid").Inc()
	}
}

// Run starts the periodic lunar ephemeris and override refreshes, and blocks until
// ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if e.conf.Lunar.Refresh <= 0 {
		level.Error(e.logger).Log("msg", "lunar ephemeris refresh disabled", "refresh", e.conf.Lunar.Refresh, "err", ErrInvalidConfig)
	}
	if e.provider != nil && e.conf.Override.Refresh <= 0 {
		level.Error(e.logger).Log("msg", "moon override refresh disabled", "refresh", e.conf.Override.Refresh, "err", ErrInvalidConfig)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		Every(ctx, e.conf.Lunar.Refresh, func(context.Context) { e.RefreshEphemeris() })
		return nil
	})
	if e.provider != nil {
		g.Go(func() error {
			Every(ctx, e.conf.Override.Refresh, e.RefreshOverride)
			return nil
		})
	}
	<-ctx.Done()
	return g.Wait()
}

// Distance returns the unscaled distance (km) between two simulated bodies.
func (e *Engine) Distance(from, to string) (float64, error) {
	f := e.Frame()
	var a, b *BodyState
	for i := range f.Bodies {
		if f.Bodies[i].Name == from {
			a = &f.Bodies[i]
		}
		if f.Bodies[i].Name == to {
			b = &f.Bodies[i]
		}
	}
	if a == nil || b == nil {
		return math.NaN(), fmt.Errorf("%w: '%s' or '%s'", ErrUnknownBody, from, to)
	}
	return b.Physical().Sub(a.Physical()).Len(), nil
}
