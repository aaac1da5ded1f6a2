// Package metrics provides Prometheus instrumentation for the rate limiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts limiter checks by outcome.
type Metrics struct {
	ChecksTotal *prometheus.CounterVec
	ErrorsTotal prometheus.Counter
}

// Check outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeLimited = "limited"
)

// New creates and registers all rate limit metrics.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_checks_total",
			Help: "Rate limiter checks by surface and outcome",
		}, []string{"surface", "outcome"}),

		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_errors_total",
			Help: "Limiter failures answered by failing open",
		}),
	}
}

// IncCheck records one limiter check.
func (m *Metrics) IncCheck(surface, outcome string) {
	if m != nil {
		m.ChecksTotal.WithLabelValues(surface, outcome).Inc()
	}
}

// IncError records one limiter failure.
func (m *Metrics) IncError() {
	if m != nil {
		m.ErrorsTotal.Inc()
	}
}
