package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts publish outcomes of the outbox relay and tracks the
// deliverable backlog.
type OutboxMetrics struct {
	total   *prometheus.CounterVec
	pending prometheus.Gauge
}

const (
	OutboxOutcomePublished  = "published"
	OutboxOutcomeRetry      = "retry"
	OutboxOutcomeDeadLetter = "dead_letter"
)

// NewOutboxMetrics registers the publish counter on reg. A nil registerer
// yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_outbox_publish_total",
		Help: "Outbox publish attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shopfloor_outbox_pending_events",
		Help: "Outbox rows not yet published and still eligible for delivery.",
	})
	reg.MustRegister(total, pending)
	return &OutboxMetrics{total: total, pending: pending}
}

func (m *OutboxMetrics) Observe(eventType, outcome string) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// SetPending records the current outbox backlog.
func (m *OutboxMetrics) SetPending(n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}
