// Package metrics provides Prometheus metrics for entitlement checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check outcomes recorded by ObserveCheck.
const (
	OutcomeActive   = "active"
	OutcomeInactive = "inactive"
	OutcomeAbsent   = "absent"
	OutcomeError    = "error"
)

// Cache events recorded by IncCacheEvent.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheError      = "error"
	CacheInvalidate = "invalidate"
)

// Metrics holds Prometheus metrics for the entitlement module.
type Metrics struct {
	ChecksTotal      *prometheus.CounterVec
	CheckDuration    *prometheus.HistogramVec
	CacheEventsTotal *prometheus.CounterVec
	BreakerOpen      prometheus.Gauge
}

// New creates and registers entitlement metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_entitlement_checks_total",
				Help: "Total number of entitlement checks by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		CheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_entitlement_check_duration_seconds",
				Help:    "Entitlement check latency by source",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"source"},
		),
		CacheEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_entitlement_cache_events_total",
				Help: "Entitlement cache hits, misses, errors and invalidations",
			},
			[]string{"event"},
		),
		BreakerOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatehouse_entitlement_backend_breaker_open",
				Help: "1 when the entitlement backend circuit breaker is open",
			},
		),
	}
}

// ObserveCheck records one entitlement check.
func (m *Metrics) ObserveCheck(source, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(source, outcome).Inc()
	m.CheckDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// IncCacheEvent records one cache event.
func (m *Metrics) IncCacheEvent(event string) {
	if m == nil {
		return
	}
	m.CacheEventsTotal.WithLabelValues(event).Inc()
}

// SetBreakerOpen updates the backend breaker gauge.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
