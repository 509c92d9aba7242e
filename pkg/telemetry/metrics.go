// Package telemetry wires Prometheus metrics and the OpenTelemetry tracer
// provider for the guarded fetch layer.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the fetch layer. A nil *Metrics
// is valid and records nothing, so telemetry stays optional for callers.
type Metrics struct {
	validationRejections *prometheus.CounterVec
	fetchAttempts        *prometheus.CounterVec
	fetchesTotal         *prometheus.CounterVec
	retriesExhausted     prometheus.Counter
	fetchDuration        prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		validationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchguard_validation_rejections_total",
				Help: "Requests blocked by the validation gate, by rejected input",
			},
			[]string{"input"},
		),
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchguard_fetch_attempts_total",
				Help: "Physical fetch attempts by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchguard_fetches_total",
				Help: "Logical fetch calls by outcome",
			},
			[]string{"outcome"},
		),
		retriesExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fetchguard_retries_exhausted_total",
				Help: "Logical fetch calls that ran out of attempts",
			},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetchguard_fetch_duration_seconds",
				Help:    "Logical fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.validationRejections,
		m.fetchAttempts,
		m.fetchesTotal,
		m.retriesExhausted,
		m.fetchDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRejection counts a validation-gate block for the given input kind.
func (m *Metrics) RecordRejection(input string) {
	if m == nil {
		return
	}
	m.validationRejections.WithLabelValues(input).Inc()
}

// RecordAttempt counts one physical attempt on the given path.
func (m *Metrics) RecordAttempt(path, outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(path, outcome).Inc()
}

// RecordFetch counts a completed logical call and observes its duration.
func (m *Metrics) RecordFetch(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// RecordExhaustion counts a logical call that exhausted its retry budget.
func (m *Metrics) RecordExhaustion() {
	if m == nil {
		return
	}
	m.retriesExhausted.Inc()
}
