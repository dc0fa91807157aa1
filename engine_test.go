package orrery

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/solar"
	"gonum.org/v1/gonum/floats/scalar"
)

var engineStart = time.Date(2024, 1, 11, 11, 57, 0, 0, time.UTC)

func testConfig() Config {
	conf := DefaultConfig()
	conf.Start = engineStart
	conf.Speed = 3600
	conf.Water.Resolution = 12
	conf.Water.Rate = 0
	return conf
}

func newTestEngine(t *testing.T, conf Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(conf, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngineTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, testConfig(), WithRegisterer(reg))
	initial := e.Frame()
	if !initial.Time.Equal(engineStart) || len(initial.Bodies) != 10 {
		t.Fatalf("unexpected initial frame %+v", initial)
	}
	f := e.Tick(1)
	if exp := engineStart.Add(time.Hour); !f.Time.Equal(exp) {
		t.Fatalf("frame at %s != %s", f.Time, exp)
	}
	if e.Frame().JD != f.JD || !scalar.EqualWithinAbs(f.JD-initial.JD, 1/24., 1e-8) {
		t.Fatalf("JD advanced by %f", f.JD-initial.JD)
	}
	if !scalar.EqualWithinAbs(f.Forces.Ratio, 2.2, 0.22) {
		t.Fatalf("lunar/solar ratio %f", f.Forces.Ratio)
	}
	// The known new moon gives a spring tide.
	if f.Lunar.Name != NewMoon || f.Tide != SpringTide || !scalar.EqualWithinAbs(f.Strength, 1.4, 0.01) {
		t.Fatalf("unexpected lunar state %s %s %f", f.Lunar, f.Tide, f.Strength)
	}
	if !scalar.EqualWithinAbs(f.Moon.Len(), MeanLunarDistance, 1e-6) || !scalar.EqualWithinAbs(f.Sun.Len(), AU, 1e-3) {
		t.Fatalf("unexpected Moon %v and Sun %v", f.Moon, f.Sun)
	}
	if n := testutil.ToFloat64(e.metrics.ticks); n != 1 {
		t.Fatalf("ticks metric = %f", n)
	}
	if n, err := testutil.GatherAndCount(reg, "orrery_ticks_total"); err != nil || n != 1 {
		t.Fatalf("metric not registered: %d %v", n, err)
	}
	// Registering twice on the same registry fails.
	if _, err := NewEngine(testConfig(), WithRegisterer(reg)); err == nil {
		t.Fatal("expected a registration error")
	}
}

func TestEngineInvalidDelta(t *testing.T) {
	e := newTestEngine(t, testConfig())
	before := e.Tick(1)
	for _, delta := range []float64{math.NaN(), math.Inf(1), -0.5} {
		f := e.Tick(delta)
		if !f.Time.Equal(before.Time) || f.JD != before.JD {
			t.Fatalf("tick with delta %f moved the simulation", delta)
		}
	}
	if n := testutil.ToFloat64(e.metrics.skipped.WithLabelValues("non_finite")); n != 2 {
		t.Fatalf("non-finite skips = %f", n)
	}
	if n := testutil.ToFloat64(e.metrics.skipped.WithLabelValues("negative_delta")); n != 1 {
		t.Fatalf("negative skips = %f", n)
	}
	// The engine keeps running.
	if f := e.Tick(1); !f.Time.Equal(before.Time.Add(time.Hour)) {
		t.Fatalf("engine stuck at %s", f.Time)
	}
}

func TestEngineSpeed(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if err := e.SetSpeed(math.NaN()); !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if err := e.SetSpeed(-7200); err != nil {
		t.Fatal(err)
	}
	f := e.Tick(1)
	if exp := engineStart.Add(-2 * time.Hour); !f.Time.Equal(exp) || f.Speed != -7200 {
		t.Fatalf("rewind to %s at %f", f.Time, f.Speed)
	}
}

func TestEngineGrid(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if _, ok := e.Grid(); ok {
		t.Fatal("grid generated before the first tick")
	}
	f := e.Tick(1)
	g, ok := e.Grid()
	if !ok || g.Resolution != 12 || !g.Time.Equal(f.Time) {
		t.Fatalf("grid not generated: %v", ok)
	}
	for _, v := range g.Values() {
		if math.Abs(v) > 0.83+1e-12 {
			t.Fatalf("grid value %f", v)
		}
	}
	e.SetWaterEffects(false)
	e.Tick(1)
	if g2, _ := e.Grid(); !g2.Time.Equal(g.Time) {
		t.Fatal("grid regenerated with water effects disabled")
	}
	e.SetWaterEffects(true)
	e.Tick(1)
	if g3, _ := e.Grid(); g3.Time.Equal(g.Time) {
		t.Fatal("grid not regenerated")
	}

	// An invalid resolution only disables the grid.
	conf := testConfig()
	conf.Water.Resolution = 0
	e = newTestEngine(t, conf)
	if f := e.Tick(1); f.Time.Equal(engineStart) {
		t.Fatal("engine did not tick")
	}
	if _, ok := e.Grid(); ok {
		t.Fatal("grid generated with an invalid resolution")
	}
}

func TestEngineGridThrottle(t *testing.T) {
	conf := testConfig()
	conf.Water.Rate = 0.001
	e := newTestEngine(t, conf)
	e.Tick(1)
	first, ok := e.Grid()
	if !ok {
		t.Fatal("first grid not generated")
	}
	for i := 0; i < 5; i++ {
		e.Tick(1)
	}
	if g, _ := e.Grid(); !g.Time.Equal(first.Time) {
		t.Fatal("grid regenerated faster than its rate")
	}
	if n := testutil.ToFloat64(e.metrics.grids.WithLabelValues("ok")); n != 1 {
		t.Fatalf("grid regenerations = %f", n)
	}
}

func TestEngineOverride(t *testing.T) {
	override := &MoonOverride{Longitude: 0, Illumination: 50, Distance: 400000, Source: "test"}
	calls := 0
	provider := ProviderFunc(func(ctx context.Context, at time.Time) (*MoonOverride, error) {
		calls++
		if at.Sub(engineStart).Abs() > time.Millisecond {
			t.Errorf("override requested at %s", at)
		}
		return override, nil
	})
	e := newTestEngine(t, testConfig(), WithProvider(provider))
	e.RefreshOverride(context.Background())
	if o, ok := e.Override(); !ok || o.Source != "test" || calls != 1 {
		t.Fatalf("override not cached: %+v", o)
	}
	// A zero longitude keeps the Moon between the Earth and the Sun while the Earth
	// moves along its orbit.
	for _, hours := range []float64{1, 91 * 24, 45 * 24} {
		f := e.Tick(hours)
		θ, err := AngleBetween(f.Moon, f.Sun)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(θ, 0, 1e-3) {
			t.Fatalf("%s: Moon-Sun angle %f° with a zero elongation override", f.Time, Rad2deg(θ))
		}
	}
	p := e.RefreshEphemeris()
	if p.Source != "test" || p.Distance != 400000 || e.Lunar().Illumination != 50 {
		t.Fatalf("lunar snapshot ignores the override: %s", p)
	}
	if f := e.Tick(1); f.Lunar.Source != "test" {
		t.Fatal("frame does not use the refreshed snapshot")
	}
}

func TestEngineInitialGeometry(t *testing.T) {
	for _, tc := range []struct {
		start      time.Time
		elongation float64 // degrees
		tide       TideKind
	}{
		{engineStart, 0, SpringTide},
		{time.Date(2024, 1, 18, 3, 52, 0, 0, time.UTC), 90, NeapTide},
		{time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC), 180, SpringTide},
		{time.Date(2024, 2, 2, 23, 18, 0, 0, time.UTC), 90, NeapTide},
	} {
		conf := testConfig()
		conf.Start = tc.start
		f := newTestEngine(t, conf).Frame()
		θ, err := AngleBetween(f.Moon, f.Sun)
		if err != nil {
			t.Fatal(err)
		}
		// The mean synodic phase is within ten degrees of the true elongation.
		if !scalar.EqualWithinAbs(Rad2deg(θ), tc.elongation, 10) {
			t.Fatalf("%s: Moon-Sun angle %f° != %f°", tc.start, Rad2deg(θ), tc.elongation)
		}
		if f.Tide != tc.tide {
			t.Fatalf("%s: %s with a Moon-Sun angle of %f°", tc.start, f.Tide, Rad2deg(θ))
		}
		// The Sun is seen from the Earth at its true longitude.
		λ, _ := solar.True(base.J2000Century(f.JD))
		if d := math.Abs(wrapAngle(math.Atan2(f.Sun[2], f.Sun[0])) - λ.Mod1().Rad()); d > 1e-9 && math.Abs(d-twoPi) > 1e-9 {
			t.Fatalf("%s: Sun at %f° instead of %f°", tc.start, Rad2deg(math.Atan2(f.Sun[2], f.Sun[0])), λ.Mod1().Deg())
		}
	}
}

func TestEngineOverrideFallback(t *testing.T) {
	var next *MoonOverride
	var fail error
	provider := ProviderFunc(func(context.Context, time.Time) (*MoonOverride, error) {
		return next, fail
	})
	e := newTestEngine(t, testConfig(), WithProvider(provider))

	// Nothing valid yet: internal computation.
	next = &MoonOverride{Longitude: math.NaN(), Illumination: 50, Distance: 400000}
	e.RefreshOverride(context.Background())
	if _, ok := e.Override(); ok {
		t.Fatal("invalid override cached")
	}
	if p := e.RefreshEphemeris(); p.Source != "internal" {
		t.Fatalf("source %s", p.Source)
	}

	// A valid override is kept through later failures.
	next = &MoonOverride{Longitude: 10, Illumination: 1, Distance: 380000, Source: "remote"}
	e.RefreshOverride(context.Background())
	next, fail = nil, errors.New("unreachable")
	e.RefreshOverride(context.Background())
	next, fail = nil, nil
	e.RefreshOverride(context.Background())
	if o, ok := e.Override(); !ok || o.Source != "remote" {
		t.Fatalf("last valid override lost: %+v", o)
	}
	for result, exp := range map[string]float64{"invalid": 1, "valid": 1, "error": 1, "empty": 1} {
		if n := testutil.ToFloat64(e.metrics.overrides.WithLabelValues(result)); n != exp {
			t.Fatalf("%s fetches = %f", result, n)
		}
	}
}

func TestEngineQueries(t *testing.T) {
	e := newTestEngine(t, testConfig())
	e.Tick(1)
	h, err := e.TideAt(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(h.Total) > e.model.MaxHeight() {
		t.Fatalf("height %+v", h)
	}
	v, c, err := e.CurrentAt(30, 45)
	if err != nil {
		t.Fatal(err)
	}
	if v.Magnitude < 0 || c.Direction != DeflectRight {
		t.Fatalf("current %+v %+v", v, c)
	}
	d, err := e.Distance("Earth", "Moon")
	if err != nil || !scalar.EqualWithinAbs(d, MeanLunarDistance, 1e-6) {
		t.Fatalf("Earth-Moon distance %f %v", d, err)
	}
	if _, err := e.Distance("Earth", "Vulcan"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
}

func TestEngineWithoutTides(t *testing.T) {
	conf := testConfig()
	conf.Bodies = []string{"Sun", "Mars"}
	e := newTestEngine(t, conf)
	if f := e.Tick(1); len(f.Bodies) != 2 || f.Forces != (TideSample{}) {
		t.Fatalf("unexpected frame %+v", f)
	}
	if _, ok := e.Grid(); ok {
		t.Fatal("grid generated without the Earth")
	}
	if _, err := e.TideAt(0, 0); !errors.Is(err, ErrTidesUnavailable) {
		t.Fatalf("expected ErrTidesUnavailable, got %v", err)
	}
	if _, _, err := e.CurrentAt(0, 0); !errors.Is(err, ErrTidesUnavailable) {
		t.Fatalf("expected ErrTidesUnavailable, got %v", err)
	}
	conf.Bodies = []string{"Pluto"}
	if _, err := NewEngine(conf); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
}

func TestResolveBodies(t *testing.T) {
	bodies, err := resolveBodies([]string{"moon", "Earth", "Sun"})
	if err != nil {
		t.Fatal(err)
	}
	if bodies[0].Name != "Earth" || bodies[1].Name != "Sun" || bodies[2].Name != "Moon" {
		t.Fatalf("unexpected order %v", bodies)
	}
	p := NewPropagator(bodies, DefaultScaleMapper(), nil)
	if moon, _ := p.State("Moon"); moon.Static {
		t.Fatal("Moon held static")
	}
}

func TestEngineRun(t *testing.T) {
	conf := testConfig()
	conf.Lunar.Refresh = time.Millisecond
	conf.Override.Refresh = time.Millisecond
	fetched := make(chan struct{}, 1)
	provider := ProviderFunc(func(context.Context, time.Time) (*MoonOverride, error) {
		select {
		case fetched <- struct{}{}:
		default:
		}
		return &MoonOverride{Longitude: 200, Illumination: 90, Distance: 390000, Source: "run"}, nil
	})
	e := newTestEngine(t, conf, WithProvider(provider))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("override never fetched")
	}
	deadline := time.After(5 * time.Second)
	for e.Lunar().Source != "run" {
		select {
		case <-deadline:
			t.Fatal("lunar snapshot never refreshed with the override")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestEngineRunDisabledRefresh(t *testing.T) {
	conf := testConfig()
	conf.Lunar.Refresh = 0
	conf.Override.Refresh = -time.Second
	var buf bytes.Buffer
	e := newTestEngine(t, conf, WithLogger(log.NewLogfmtLogger(&buf)), WithProvider(ProviderFunc(func(context.Context, time.Time) (*MoonOverride, error) {
		return nil, nil
	})))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	for _, msg := range []string{"lunar ephemeris refresh disabled", "moon override refresh disabled"} {
		if !strings.Contains(buf.String(), msg) {
			t.Fatalf("missing %q in the logs:\n%s", msg, buf.String())
		}
	}
}
