package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/ChristopherRabotin/orrery/ephemeris"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type exportOpts struct {
	from, until string
	step        time.Duration
	output      string
	bodies      []string
	timestamp   bool
}

func (a *app) newExportCmd() *cobra.Command {
	var o exportOpts
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Simulate a date range without rendering and export the frames as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := a.config()
			if err != nil {
				return err
			}
			logger := newLogger(conf.LogLevel)
			from, until := conf.Start, conf.Start.Add(30*24*time.Hour)
			if o.from != "" {
				if from, err = parseDate(o.from); err != nil {
					return err
				}
			}
			if o.until != "" {
				if until, err = parseDate(o.until); err != nil {
					return err
				}
			}
			if o.step <= 0 || !until.After(from) {
				return fmt.Errorf("%w: export from %s until %s every %s", orrery.ErrInvalidConfig, from, until, o.step)
			}
			conf.Start = from
			conf.Speed = 1
			conf.Water.Enabled = false
			if len(o.bodies) > 0 {
				conf.Bodies = o.bodies
			}

			w := cmd.OutOrStdout()
			if o.output != "" && o.output != "-" {
				f, err := os.Create(o.output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := export(cmd.Context(), conf, until, o.step, w, orrery.ExportConfig{Bodies: conf.Bodies, Step: o.step, Timestamp: o.timestamp}, logger)
			if err != nil {
				return err
			}
			level.Info(logger).Log("msg", "export done", "records", n, "from", from.Format(dateFormat), "until", until.Format(dateFormat))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.from, "from", "", "first date (Julian date or RFC 3339), defaults to simulation.start")
	flags.StringVar(&o.until, "until", "", "last date, defaults to thirty days after the first")
	flags.DurationVar(&o.step, "step", time.Hour, "simulated time between two records")
	flags.StringVarP(&o.output, "output", "o", "-", "output file, - for stdout")
	flags.StringSliceVar(&o.bodies, "bodies", nil, "bodies to simulate and export, defaults to simulation.bodies")
	flags.BoolVar(&o.timestamp, "timestamp", false, "write the creation date in the header")
	return cmd
}

// export ticks a headless engine by step until the provided date, streaming every
// frame to w. The lunar snapshot is refreshed on every step and the Moon override
// every override.refresh of simulated time.
func export(ctx context.Context, conf orrery.Config, until time.Time, step time.Duration, w io.Writer, ec orrery.ExportConfig, logger log.Logger) (int, error) {
	provider, err := ephemeris.FromConfig(conf.Override, logger)
	if err != nil {
		return 0, err
	}
	engine, err := orrery.NewEngine(conf, orrery.WithLogger(logger), orrery.WithProvider(provider))
	if err != nil {
		return 0, err
	}

	frames := make(chan orrery.Frame, 64)
	var written int
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		var lastOverride time.Time
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := engine.Frame()
			if provider != nil && (lastOverride.IsZero() || f.Time.Sub(lastOverride) >= conf.Override.Refresh) {
				engine.RefreshOverride(ctx)
				lastOverride = f.Time
			}
			engine.RefreshEphemeris()
			// A zero tick republishes the frame with the refreshed snapshot.
			f = engine.Tick(0)
			select {
			case frames <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
			if !f.Time.Add(step).Before(until.Add(time.Nanosecond)) {
				return nil
			}
			engine.Tick(step.Seconds())
		}
	})
	g.Go(func() (err error) {
		written, err = orrery.StreamFrames(w, ec, frames)
		return err
	})
	return written, g.Wait()
}
