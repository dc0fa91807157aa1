package orrery

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportConfig configures a frame export.
type ExportConfig struct {
	Bodies    []string      // Bodies whose positions are exported, in this order
	Step      time.Duration // Minimum simulated time between two records
	Timestamp bool          // Write the creation date in the header
}

// exportHeader returns the CSV column names.
func (c ExportConfig) exportHeader() []string {
	hdr := []string{"time", "jd", "phase", "phase_name", "illumination", "moon_distance", "tide", "strength", "lunar_force", "solar_force", "ratio"}
	for _, name := range c.Bodies {
		hdr = append(hdr, name+"_x", name+"_y", name+"_z")
	}
	return hdr
}

// exportRecord formats a frame as a CSV record. Missing bodies yield empty columns.
func (c ExportConfig) exportRecord(f Frame) []string {
	ff := func(v float64, prec int) string {
		return strconv.FormatFloat(v, 'f', prec, 64)
	}
	rec := []string{
		f.Time.UTC().Format("2006-01-02 15:04:05"),
		ff(f.JD, 6),
		ff(f.Lunar.Phase, 5),
		f.Lunar.Name.String(),
		ff(f.Lunar.Illumination, 3),
		ff(f.Lunar.Distance, 1),
		f.Tide.String(),
		ff(f.Strength, 4),
		strconv.FormatFloat(f.Forces.Lunar, 'e', 6, 64),
		strconv.FormatFloat(f.Forces.Solar, 'e', 6, 64),
		ff(f.Forces.Ratio, 4),
	}
	for _, name := range c.Bodies {
		found := false
		for _, b := range f.Bodies {
			if b.Name != name {
				continue
			}
			p := b.Physical()
			rec = append(rec, ff(p[0], 1), ff(p[1], 1), ff(p[2], 1))
			found = true
			break
		}
		if !found {
			rec = append(rec, "", "", "")
		}
	}
	return rec
}

// StreamFrames writes the frames received on the channel to w as CSV until the channel
// is closed, and returns the number of records written. The channel is always drained,
// even after a write error.
func StreamFrames(w io.Writer, conf ExportConfig, frames <-chan Frame) (int, error) {
	var (
		cw       *csv.Writer
		prev     Frame
		written  int
		firstErr error
	)
	fail := func(err error) {
		if firstErr == nil && err != nil {
			firstErr = err
		}
	}
	for f := range frames {
		if firstErr != nil {
			continue
		}
		if cw == nil {
			if conf.Timestamp {
				_, err := fmt.Fprintf(w, "# Creation date (UTC): %s\n", time.Now().UTC())
				fail(err)
			}
			_, err := fmt.Fprintf(w, "# Simulation time start (UTC): %s\n# Distances in km, tidal accelerations in m/s^2.\n", f.Time.UTC())
			fail(err)
			cw = csv.NewWriter(w)
			fail(cw.Write(conf.exportHeader()))
		} else if f.Time.Sub(prev.Time) < conf.Step {
			// Only one record per step.
			continue
		}
		fail(cw.Write(conf.exportRecord(f)))
		if firstErr == nil {
			written++
			prev = f
		}
	}
	if cw == nil {
		return 0, firstErr
	}
	cw.Flush()
	fail(cw.Error())
	if firstErr == nil {
		_, err := fmt.Fprintf(w, "# Simulation time end (UTC): %s\n", prev.Time.UTC())
		fail(err)
	}
	return written, firstErr
}
