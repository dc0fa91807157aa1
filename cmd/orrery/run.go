package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChristopherRabotin/orrery"
	"github.com/ChristopherRabotin/orrery/ephemeris"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	statusPeriod    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation and serve its frames",
		Args:  cobra.NoArgs,
		RunE:  a.run,
	}
	flags := cmd.Flags()
	flags.Float64("speed", 1, "simulated seconds per real second")
	flags.Float64("fps", 60, "frame ticks per second")
	flags.String("start", "", "start date (Julian date or RFC 3339), defaults to now")
	flags.String("scale", "viewable", "display scale (realistic, logarithmic, viewable)")
	flags.Bool("water", true, "generate the water displacement grid")
	flags.Int("resolution", 64, "water displacement grid resolution")
	flags.String("override", "none", "Moon override source (none, meeus, http, chain)")
	flags.String("override-url", "", "Moon override endpoint for the http and chain sources")
	flags.String("listen", ":8080", "HTTP listen address, empty to disable")
	for key, name := range map[string]string{
		"simulation.speed": "speed", "simulation.fps": "fps", "simulation.start": "start",
		"display.scale": "scale", "water.enabled": "water", "water.resolution": "resolution",
		"override.source": "override", "override.url": "override-url", "server.listen": "listen",
	} {
		a.v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	conf, err := a.config()
	if err != nil {
		return err
	}
	logger := newLogger(conf.LogLevel)
	provider, err := ephemeris.FromConfig(conf.Override, logger)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engine, err := orrery.NewEngine(conf, orrery.WithLogger(logger), orrery.WithProvider(provider), orrery.WithRegisterer(reg))
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "starting", "start", conf.Start.Format(dateFormat), "speed", conf.Speed, "fps", conf.FPS, "scale", conf.Scale.Mode, "override", conf.Override.Source)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	hub := newHub(engine, defaultStreamRate, logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error {
		drive(ctx, engine, conf.FPS, hub, logger)
		return nil
	})
	if conf.Listen != "" {
		srv := &http.Server{Addr: conf.Listen, Handler: newMux(engine, hub, reg), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			level.Info(logger).Log("msg", "listening", "addr", conf.Listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			hub.close()
			return srv.Shutdown(sctx)
		})
	}
	err = g.Wait()
	level.Info(logger).Log("msg", "stopped", "date", engine.Frame().Time.Format(dateFormat))
	return err
}

// drive ticks the engine at the requested rate with the real elapsed time until ctx is done.
func drive(ctx context.Context, e *orrery.Engine, fps float64, hub *hub, logger log.Logger) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()
	status := time.NewTicker(statusPeriod)
	defer status.Stop()
	last := time.Now()
	logStatus(logger, e.Frame())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f := e.Tick(now.Sub(last).Seconds())
			last = now
			hub.publish(f)
		case <-status.C:
			logStatus(logger, e.Frame())
		}
	}
}

func logStatus(logger log.Logger, f orrery.Frame) {
	level.Info(logger).Log("date", f.Time.Format(dateFormat), "jd", f.JD, "speed", f.Speed, "moon", f.Lunar.Name, "illum(%)", f.Lunar.Illumination, "tide", f.Tide, "strength", f.Strength, "ratio", f.Forces.Ratio)
}
