package orrery

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/soniakeys/meeus/v3/julian"
)

// ErrNegativeDelta is returned when the real-time delta goes backwards.
// Rewinding is done with a negative speed, never with a negative delta.
var ErrNegativeDelta = errors.New("negative real-time delta")

// maxTickSeconds bounds the simulated time covered by a single tick (a million
// Julian years) so the day count in addSeconds always fits an int.
const maxTickSeconds = 1e6 * 365.25 * Day

// SimClock keeps the simulated timestamp.
// It is mutated once per tick by a single writer and never reset.
type SimClock struct {
	now      time.Time
	speed    float64
	lastReal time.Time
	logger   log.Logger
}

// NewSimClock returns a new clock starting at the provided time (converted to UTC).
func NewSimClock(start time.Time, speed float64, logger log.Logger) *SimClock {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &SimClock{now: start.UTC(), speed: 1, logger: log.With(logger, "subsys", "clock")}
	c.SetSpeed(speed)
	return c
}

// Now returns the current simulated time.
func (c *SimClock) Now() time.Time {
	return c.now
}

// Speed returns the time speed multiplier.
func (c *SimClock) Speed() float64 {
	return c.speed
}

// SetSpeed sets the time speed multiplier: negative rewinds and zero pauses.
// A non-finite speed is ignored.
func (c *SimClock) SetSpeed(speed float64) {
	if !isFinite(speed) {
		level.Warn(c.logger).Log("msg", "speed ignored", "speed", speed, "err", ErrNonFinite)
		return
	}
	c.speed = speed
}

// JulianDate returns the Julian Date of the current simulated time.
func (c *SimClock) JulianDate() float64 {
	return TimeToJD(c.now)
}

// Advance moves the simulated time by delta×speed, where delta is the elapsed real
// time in seconds. It returns the number of simulated seconds elapsed.
// Invalid deltas leave the clock untouched.
func (c *SimClock) Advance(delta float64) (float64, error) {
	if !isFinite(delta) {
		level.Warn(c.logger).Log("msg", "tick skipped", "delta", delta, "err", ErrNonFinite)
		return 0, ErrNonFinite
	}
	if delta < 0 {
		level.Warn(c.logger).Log("msg", "tick skipped", "delta", delta, "err", ErrNegativeDelta)
		return 0, ErrNegativeDelta
	}
	elapsed := delta * c.speed
	if !isFinite(elapsed) {
		level.Warn(c.logger).Log("msg", "tick skipped", "delta", delta, "speed", c.speed, "err", ErrNonFinite)
		return 0, ErrNonFinite
	}
	if math.Abs(elapsed) > maxTickSeconds {
		err := fmt.Errorf("%w: tick of %g s exceeds %g s", ErrNonFinite, elapsed, maxTickSeconds)
		level.Warn(c.logger).Log("msg", "tick skipped", "delta", delta, "speed", c.speed, "err", err)
		return 0, err
	}
	c.now = addSeconds(c.now, elapsed)
	return elapsed, nil
}

// Sample advances the clock by the real time elapsed since the previous sample.
// The first sample only records the real time.
func (c *SimClock) Sample(real time.Time) (float64, error) {
	if c.lastReal.IsZero() {
		c.lastReal = real
		return 0, nil
	}
	delta := real.Sub(c.lastReal).Seconds()
	c.lastReal = real
	return c.Advance(delta)
}

// addSeconds adds a possibly very large number of seconds to t without
// overflowing time.Duration.
func addSeconds(t time.Time, s float64) time.Time {
	days := math.Trunc(s / Day)
	rem := s - days*Day
	return t.AddDate(0, 0, int(days)).Add(time.Duration(rem * float64(time.Second)))
}

// TimeToJD converts a time to its Julian Date using the Gregorian calendar.
func TimeToJD(t time.Time) float64 {
	t = t.UTC()
	y, m, d := t.Date()
	h, mn, s := t.Clock()
	dayFrac := (float64(h)*3600 + float64(mn)*60 + float64(s) + float64(t.Nanosecond())/1e9) / Day
	return julian.CalendarGregorianToJD(y, int(m), float64(d)+dayFrac)
}

// JDToTime converts a Julian Date to a UTC time.
func JDToTime(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}
