// Package metrics provides Prometheus metrics for the billing webhook.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for received events.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics holds Prometheus metrics for webhook ingestion.
type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	ProcessDuration *prometheus.HistogramVec
}

// New creates and registers webhook metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_webhook_events_total",
				Help: "Total number of billing webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		ProcessDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatehouse_webhook_process_duration_seconds",
				Help:    "Time spent processing a verified billing event",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"type"},
		),
	}
}

// IncEvent counts a received event by type and outcome.
func (m *Metrics) IncEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveProcess records the processing duration for a verified event.
func (m *Metrics) ObserveProcess(eventType string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProcessDuration.WithLabelValues(eventType).Observe(d.Seconds())
}
