package orrery

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestScaleMonotonic(t *testing.T) {
	for _, mode := range []ScaleMode{Realistic, Logarithmic, Viewable} {
		s := DefaultScaleMapper()
		s.Mode = mode
		prev := s.Map(0)
		if prev != 0 {
			t.Fatalf("%s: Map(0) = %f", mode, prev)
		}
		for _, x := range []float64{1e-9, 1e-3, 0.5, 1, 10, 1737.4, 6371, 384400, 5.79e7, AU, 7.8e8, 4.5e9, 5e9} {
			v := s.Map(x)
			if v <= prev {
				t.Fatalf("%s: Map(%g) = %g not above %g", mode, x, v, prev)
			}
			prev = v
		}
		for x := 1.0; x < 5e9; x *= 1.7 {
			if s.Map(x*1.0001) <= s.Map(x) {
				t.Fatalf("%s: not strictly increasing at %g", mode, x)
			}
		}
	}
}

func TestScaleValues(t *testing.T) {
	s := DefaultScaleMapper()
	if v := s.Map(4.5e9); !scalar.EqualWithinAbs(v, 1006.23, 0.01) {
		t.Fatalf("viewable Neptune = %f", v)
	}
	s.Mode = Realistic
	if v := s.Map(AU); !scalar.EqualWithinAbs(v, 149.598, 1e-3) {
		t.Fatalf("realistic AU = %f", v)
	}
	s.Mode = Logarithmic
	if v := s.Map(math.E - 1); !scalar.EqualWithinAbs(v, 50, 1e-12) {
		t.Fatalf("logarithmic = %f", v)
	}
	for _, x := range []float64{-1, math.NaN(), math.Inf(-1)} {
		if v := s.Map(x); v != 0 {
			t.Fatalf("Map(%f) = %f", x, v)
		}
	}
}

func TestParseScaleMode(t *testing.T) {
	for in, exp := range map[string]ScaleMode{
		"":            Viewable,
		"viewable":    Viewable,
		" Realistic ": Realistic,
		"linear":      Realistic,
		"LOG":         Logarithmic,
		"logarithmic": Logarithmic,
	} {
		m, err := ParseScaleMode(in)
		if err != nil || m != exp {
			t.Fatalf("ParseScaleMode(%q) = %s, %v", in, m, err)
		}
	}
	if _, err := ParseScaleMode("cubic"); !errors.Is(err, ErrUnknownScale) {
		t.Fatalf("expected ErrUnknownScale, got %v", err)
	}
}
