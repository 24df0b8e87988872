package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransitionMetrics counts order transitions by entity, action and outcome.
type TransitionMetrics struct {
	total *prometheus.CounterVec
}

// NewTransitionMetrics registers the transition counter on reg. A nil
// registerer yields a no-op recorder.
func NewTransitionMetrics(reg prometheus.Registerer) *TransitionMetrics {
	if reg == nil {
		return &TransitionMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_order_transitions_total",
		Help: "Order state transitions by entity, action and outcome.",
	}, []string{"entity", "action", "outcome"})
	reg.MustRegister(total)
	return &TransitionMetrics{total: total}
}

// Observe records one transition attempt. outcome is "ok" or an error code.
func (m *TransitionMetrics) Observe(entity, action, outcome string) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(normalizeLabel(entity), normalizeLabel(action), normalizeLabel(outcome)).Inc()
}
