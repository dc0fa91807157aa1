package orrery

import (
	"bytes"
	"encoding/csv"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestStreamFrames(t *testing.T) {
	e := newTestEngine(t, testConfig())
	frames := make(chan Frame, 8)
	frames <- e.Frame()
	for i := 0; i < 6; i++ {
		frames <- e.Tick(1)
	}
	close(frames)

	var buf bytes.Buffer
	conf := ExportConfig{Bodies: []string{"Earth", "Moon", "Vulcan"}, Step: 2 * time.Hour}
	n, err := StreamFrames(&buf, conf, frames)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("wrote %d records", n)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Simulation time start (UTC): 2024-01-11 11:57:00 +0000 UTC") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "\n# Distances in km, tidal accelerations in m/s^2.\n") {
		t.Fatalf("units missing from the header:\n%s", out)
	}
	if !strings.HasSuffix(out, "# Simulation time end (UTC): 2024-01-11 17:57:00 +0000 UTC\n") {
		t.Fatalf("unexpected footer:\n%s", out)
	}

	r := csv.NewReader(strings.NewReader(out))
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("%d rows", len(records))
	}
	if len(records[0]) != 11+3*3 || records[0][11] != "Earth_x" || records[0][19] != "Vulcan_z" {
		t.Fatalf("unexpected header %v", records[0])
	}
	for i, rec := range records[1:] {
		exp := engineStart.Add(time.Duration(2*i) * time.Hour).Format("2006-01-02 15:04:05")
		if rec[0] != exp {
			t.Fatalf("record %d at %s != %s", i, rec[0], exp)
		}
		x, _ := strconv.ParseFloat(rec[11], 64)
		z, _ := strconv.ParseFloat(rec[13], 64)
		if !scalar.EqualWithinAbs(math.Hypot(x, z), AU, 1) {
			t.Fatalf("record %d: Earth at %f km from the Sun", i, math.Hypot(x, z))
		}
		if rec[17] != "" || rec[19] != "" {
			t.Fatalf("record %d: unknown body has values %v", i, rec[17:])
		}
		if rec[3] != NewMoon.String() {
			t.Fatalf("record %d: phase %s", i, rec[3])
		}
	}
}

type failingWriter struct{}

var errDiskFull = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) {
	return 0, errDiskFull
}

func TestStreamFramesDrains(t *testing.T) {
	frames := make(chan Frame)
	go func() {
		for i := 0; i < 10; i++ {
			frames <- Frame{Time: engineStart.Add(time.Duration(i) * time.Hour)}
		}
		close(frames)
	}()
	n, err := StreamFrames(failingWriter{}, ExportConfig{Timestamp: true}, frames)
	if !errors.Is(err, errDiskFull) || n != 0 {
		t.Fatalf("expected the write error, got %d %v", n, err)
	}
}

func TestStreamFramesEmpty(t *testing.T) {
	frames := make(chan Frame)
	close(frames)
	var buf bytes.Buffer
	if n, err := StreamFrames(&buf, ExportConfig{}, frames); n != 0 || err != nil || buf.Len() != 0 {
		t.Fatalf("unexpected output %d %v %q", n, err, buf.String())
	}
}
