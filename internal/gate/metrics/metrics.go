package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the gate module.
type Metrics struct {
	// Decisions by outcome and reason
	DecisionsTotal *prometheus.CounterVec

	// Full evaluation latency by mode
	EvaluationDuration *prometheus.HistogramVec

	// Upstream fetch latencies by source
	FetchDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all gate metrics registered.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_gate_decisions_total",
			Help: "Total gate decisions by outcome and reason",
		}, []string{"outcome", "reason"}),

		EvaluationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatehouse_gate_evaluation_duration_seconds",
			Help:    "Duration of one full gate evaluation including upstream fetches",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"mode"}), // mode: "sequential", "fanout"

		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatehouse_gate_fetch_duration_seconds",
			Help:    "Duration of upstream fetches by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "entitlement", "profile"
	}
}

// IncDecision records one decision.
func (m *Metrics) IncDecision(outcome, reason string) {
	if m != nil {
		m.DecisionsTotal.WithLabelValues(outcome, reason).Inc()
	}
}

// ObserveEvaluation records the total evaluation duration.
func (m *Metrics) ObserveEvaluation(mode string, d time.Duration) {
	if m != nil {
		m.EvaluationDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// ObserveFetch records the duration of one upstream fetch.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m != nil {
		m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
	}
}
