package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts what the relay did with each claimed event.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	c := &collectors{reg: reg}
	m := &OutboxMetrics{
		published:    c.counter("outbox_events_published_total", "Outbox events relayed to Pub/Sub.", "event_type"),
		failed:       c.counter("outbox_events_failed_total", "Publish attempts that will be retried.", "event_type"),
		deadLettered: c.counter("outbox_events_dead_lettered_total", "Outbox events moved to the dead-letter table.", "event_type", "reason"),
	}
	c.register()
	return m
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m != nil {
		bump(m.published, 1, eventType)
	}
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m != nil {
		bump(m.failed, 1, eventType)
	}
}

func (m *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if m != nil {
		bump(m.deadLettered, 1, eventType, reason)
	}
}
