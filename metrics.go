package orrery

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "orrery"

// engineMetrics are the prometheus collectors of an engine.
type engineMetrics struct {
	ticks         prometheus.Counter
	skipped       *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	grids         *prometheus.CounterVec
	gridDuration  prometheus.Histogram
	overrides     *prometheus.CounterVec
	illumination  prometheus.Gauge
	phase         prometheus.Gauge
	tideStrength  prometheus.Gauge
	staticBodies  prometheus.Gauge
	simulatedTime prometheus.Gauge
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ticks_total",
			Help: "Number of applied frame ticks.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ticks_skipped_total",
			Help: "Number of skipped frame ticks, labeled by reason.",
		}, []string{"reason"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "tick_duration_seconds",
			Help:    "Wall time spent in a frame tick.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		grids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "grid_regenerations_total",
			Help: "Number of displacement grid regenerations, labeled by result.",
		}, []string{"result"}),
		gridDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "grid_duration_seconds",
			Help:    "Wall time spent generating a displacement grid.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "moon_override_fetches_total",
			Help: "Number of Moon override fetches, labeled by result.",
		}, []string{"result"}),
		illumination: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "lunar_illumination_percent",
			Help: "Illuminated fraction of the lunar disk in the latest snapshot.",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "lunar_phase_fraction",
			Help: "Lunar phase fraction in the latest snapshot.",
		}),
		tideStrength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "tide_strength",
			Help: "Relative tidal range of the latest frame.",
		}),
		staticBodies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "static_bodies",
			Help: "Number of misconfigured bodies held static.",
		}),
		simulatedTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "simulated_time_seconds",
			Help: "Simulated time of the latest frame as a Unix timestamp.",
		}),
	}
}

func (m *engineMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.ticks, m.skipped, m.tickDuration, m.grids, m.gridDuration, m.overrides, m.illumination, m.phase, m.tideStrength, m.staticBodies, m.simulatedTime}
}

// register registers every collector. A nil registerer leaves them unregistered.
func (m *engineMetrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering engine metrics: %w", err)
		}
	}
	return nil
}

// skipReason returns the metric label of a tick error.
func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrNegativeDelta):
		return "negative_delta"
	case errors.Is(err, ErrNonFinite):
		return "non_finite"
	default:
		return "other"
	}
}
