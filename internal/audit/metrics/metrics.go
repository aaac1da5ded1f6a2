// Package metrics provides Prometheus metrics for the audit trail.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit event flow.
type Metrics struct {
	RecordedTotal   *prometheus.CounterVec
	SampledOutTotal prometheus.Counter
	DroppedTotal    prometheus.Counter
	SinkFailures    prometheus.Counter
}

// New creates and registers audit metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		RecordedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatehouse_audit_events_recorded_total",
				Help: "Total number of audit events accepted into the buffer",
			},
			[]string{"action"},
		),
		SampledOutTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_audit_events_sampled_out_total",
			Help: "Total number of audit events dropped by sampling",
		}),
		DroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_audit_sink_failures_total",
			Help: "Total number of audit sink write failures",
		}),
	}
}

// IncRecorded counts an event accepted into the buffer.
func (m *Metrics) IncRecorded(action string) {
	if m == nil {
		return
	}
	m.RecordedTotal.WithLabelValues(action).Inc()
}

// IncSampledOut counts an event dropped by sampling.
func (m *Metrics) IncSampledOut() {
	if m == nil {
		return
	}
	m.SampledOutTotal.Inc()
}

// IncDropped counts an event dropped on a full buffer.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.DroppedTotal.Inc()
}

// IncSinkFailure counts a failed sink write.
func (m *Metrics) IncSinkFailure() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}
