// Package metrics exposes Prometheus collectors for the rank tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check outcomes used as the "outcome" label.
const (
	OutcomeRanked        = "ranked"
	OutcomeNotFound      = "not_found"
	OutcomeProviderError = "provider_error"
	OutcomeStoreError    = "store_error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	checksTotal         *prometheus.CounterVec
	tickDuration        prometheus.Histogram
	ticksSkippedTotal   prometheus.Counter
	trackedItems        prometheus.Gauge
	sweepDeletedTotal   prometheus.Counter
	sweepErrorsTotal    prometheus.Counter
	breakerTrippedGauge prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rankwatch_checks_total",
				Help: "Rank checks performed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankwatch_tick_duration_seconds",
			Help:    "Duration of tracking ticks.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		ticksSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankwatch_ticks_skipped_total",
			Help: "Tracking ticks skipped because one was already running or the breaker was tripped.",
		}),
		trackedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankwatch_tracked_items",
			Help: "Tracked items seen by the last tick.",
		}),
		sweepDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankwatch_sweep_deleted_records_total",
			Help: "History records removed by retention sweeps.",
		}),
		sweepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankwatch_sweep_errors_total",
			Help: "Retention sweeps that failed.",
		}),
		breakerTrippedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankwatch_circuit_breaker_tripped",
			Help: "1 while the tracking circuit breaker is tripped.",
		}),
	}
	m.registry.MustRegister(
		m.checksTotal,
		m.tickDuration,
		m.ticksSkippedTotal,
		m.trackedItems,
		m.sweepDeletedTotal,
		m.sweepErrorsTotal,
		m.breakerTrippedGauge,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCheck counts one rank check outcome.
func (m *Metrics) ObserveCheck(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}

// ObserveTick records a completed tick.
func (m *Metrics) ObserveTick(items int, d time.Duration) {
	if m == nil {
		return
	}
	m.trackedItems.Set(float64(items))
	m.tickDuration.Observe(d.Seconds())
}

// TickSkipped counts a tick that did not run.
func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticksSkippedTotal.Inc()
}

// ObserveSweep records a sweep result.
func (m *Metrics) ObserveSweep(deleted int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepErrorsTotal.Inc()
		return
	}
	m.sweepDeletedTotal.Add(float64(deleted))
}

// SetBreakerTripped reports the circuit breaker state.
func (m *Metrics) SetBreakerTripped(tripped bool) {
	if m == nil {
		return
	}
	if tripped {
		m.breakerTrippedGauge.Set(1)
		return
	}
	m.breakerTrippedGauge.Set(0)
}
