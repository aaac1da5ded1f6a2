package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes recorded by token resolvers.
const (
	OutcomeResolved = "resolved"
	OutcomeAbsent   = "absent"
	OutcomeError    = "error"
)

// Metrics provides observability for the identity module.
type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all identity module metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_identity_resolutions_total",
			Help: "Total token resolutions by outcome",
		}, []string{"outcome"}),
	}
}

// IncResolution records a token resolution outcome.
func (m *Metrics) IncResolution(outcome string) {
	if m != nil {
		m.ResolutionsTotal.WithLabelValues(outcome).Inc()
	}
}
