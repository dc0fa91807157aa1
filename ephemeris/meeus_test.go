package ephemeris

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestMeeusExample(t *testing.T) {
	// Astronomical Algorithms, examples 47.a and 48.a: 1992 April 12, 0h TD.
	const jde = 2448724.5
	at := orrery.JDToTime(jde - DeltaT(jde)/orrery.Day)
	if got := JDE(at); !scalar.EqualWithinAbs(got, jde, 1e-7) {
		t.Fatalf("JDE = %f", got)
	}
	o, err := Meeus{}.MoonOverride(context.Background(), at)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(o.Distance, 368409.7, 0.5) {
		t.Fatalf("distance = %f km", o.Distance)
	}
	if !scalar.EqualWithinAbs(o.Illumination, 67.9, 0.5) {
		t.Fatalf("illumination = %f%%", o.Illumination)
	}
	if o.Source != MeeusSource || !o.Valid() {
		t.Fatalf("invalid override %+v", o)
	}
}

func TestDeltaT(t *testing.T) {
	for _, tc := range []struct {
		t        time.Time
		min, max float64
	}{
		{time.Date(1992, 4, 12, 0, 0, 0, 0, time.UTC), 58, 58.6},
		{time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 63.6, 64},
		{time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), 60, 110},
		{time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC), 100, 400},
	} {
		if dt := DeltaT(orrery.TimeToJD(tc.t)); dt < tc.min || dt > tc.max {
			t.Fatalf("%s: ΔT = %f s", tc.t, dt)
		}
	}
}

func TestMeeusPhases(t *testing.T) {
	for _, tc := range []struct {
		t            time.Time
		elongation   float64
		illumination float64
	}{
		{time.Date(2024, 1, 11, 11, 57, 0, 0, time.UTC), 0, 0},
		{time.Date(2024, 1, 18, 3, 52, 0, 0, time.UTC), 90, 50},
		{time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC), 180, 100},
		{time.Date(2024, 2, 2, 23, 18, 0, 0, time.UTC), 270, 50},
	} {
		o, err := Meeus{}.MoonOverride(context.Background(), tc.t)
		if err != nil {
			t.Fatal(err)
		}
		d := math.Abs(o.Longitude - tc.elongation)
		if d > 180 {
			d = 360 - d
		}
		if d > 1 {
			t.Fatalf("%s: elongation %f != %f", tc.t, o.Longitude, tc.elongation)
		}
		if !scalar.EqualWithinAbs(o.Illumination, tc.illumination, 1.5) {
			t.Fatalf("%s: illumination %f != %f", tc.t, o.Illumination, tc.illumination)
		}
		if o.Longitude < 0 || o.Longitude >= 360 || o.Distance < 356000 || o.Distance > 407000 {
			t.Fatalf("%s: unexpected override %+v", tc.t, o)
		}
	}
}

func TestMeeusCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Meeus{}).MoonOverride(ctx, time.Now()); err == nil {
		t.Fatal("expected an error on a canceled context")
	}
}

func TestMeeusAgreesWithInternal(t *testing.T) {
	// The mean synodic phase stays close to the true elongation.
	e := orrery.NewLunarEphemeris()
	for day := 0; day < 60; day += 3 {
		at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day)
		o, err := Meeus{}.MoonOverride(context.Background(), at)
		if err != nil {
			t.Fatal(err)
		}
		p := e.Snapshot(orrery.TimeToJD(at))
		d := math.Abs(o.Longitude - p.Longitude)
		if d > 180 {
			d = 360 - d
		}
		// Equations of center of the Moon and the Sun, plus evection and variation.
		if d > 15 {
			t.Fatalf("%s: Meeus elongation %f, internal %f", at, o.Longitude, p.Longitude)
		}
	}
}
