// Package telemetry exposes Prometheus metrics for the guardrail
// pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the moat service.
type Metrics struct {
	ChecksTotal        *prometheus.CounterVec
	CheckDurationMs    *prometheus.HistogramVec
	RedactionsTotal    *prometheus.CounterVec
	RateLimitDenials   *prometheus.CounterVec
	NotificationsTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moat_checks_total",
			Help: "Total guardrail checks by outcome and reason code.",
		}, []string{"outcome", "reason"}),

		CheckDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moat_check_duration_ms",
			Help:    "Guardrail check duration in milliseconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}, []string{"outcome"}),

		RedactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moat_redactions_total",
			Help: "Total output redactions by marker token.",
		}, []string{"token"}),

		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "moat_rate_limit_denials_total",
			Help: "Total rate limit denials by track.",
		}, []string{"track"}),

		NotificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "moat_admin_notifications_total",
			Help: "Total admin notifications dispatched.",
		}),
	}
}

// RecordCheck records one completed guardrail check.
func (m *Metrics) RecordCheck(outcome, reason string, durationMs float64, adminNotified bool) {
	m.ChecksTotal.WithLabelValues(outcome, reason).Inc()
	m.CheckDurationMs.WithLabelValues(outcome).Observe(durationMs)
	if adminNotified {
		m.NotificationsTotal.Inc()
	}
}

// RecordRateLimitDenial records one denied check on the given track.
func (m *Metrics) RecordRateLimitDenial(track string) {
	m.RateLimitDenials.WithLabelValues(track).Inc()
}

// RecordRedactions records the marker tokens applied to one output.
func (m *Metrics) RecordRedactions(tokens []string) {
	for _, t := range tokens {
		m.RedactionsTotal.WithLabelValues(t).Inc()
	}
}
