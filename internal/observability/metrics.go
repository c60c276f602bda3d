// Package observability holds the Prometheus metrics of the collaboration
// relay. All metric operations are safe for concurrent use.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace  = "collab"
	realtimeSubsystem = "realtime"
)

// Direction label values for EventsTotal.
const (
	Inbound  = "in"
	Outbound = "out"
)

type Metrics struct {
	// ConnectionsActive is the number of open channel connections.
	ConnectionsActive prometheus.Gauge

	// EventsTotal counts channel events.
	// Labels: type (event name), direction (in, out)
	EventsTotal *prometheus.CounterVec

	// RejectedEventsTotal counts inbound frames that were dropped.
	// Labels: reason (malformed, unknown, invalid, rate_limited, unbound, direction)
	RejectedEventsTotal *prometheus.CounterVec

	// DroppedMessagesTotal counts outbound frames dropped on a full send buffer.
	DroppedMessagesTotal prometheus.Counter

	// OperationsAppliedTotal counts text operations applied to block content.
	OperationsAppliedTotal prometheus.Counter

	// EditRequestsTotal counts edit-permission outcomes.
	// Labels: outcome (granted, pending, approved, denied, ignored)
	EditRequestsTotal *prometheus.CounterVec

	// PersistFailuresTotal counts block saves that could not be queued.
	PersistFailuresTotal prometheus.Counter
}

// NewMetrics registers the relay metrics on reg. Pass a fresh registry in
// tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "connections_active",
			Help:      "Open collaboration channel connections.",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "events_total",
			Help:      "Channel events by type and direction.",
		}, []string{"type", "direction"}),
		RejectedEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "rejected_events_total",
			Help:      "Inbound frames dropped before dispatch.",
		}, []string{"reason"}),
		DroppedMessagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "dropped_messages_total",
			Help:      "Outbound frames dropped because a client was too slow.",
		}),
		OperationsAppliedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "operations_applied_total",
			Help:      "Text operations applied to block content.",
		}),
		EditRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "edit_requests_total",
			Help:      "Edit permission handshakes by outcome.",
		}, []string{"outcome"}),
		PersistFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: realtimeSubsystem,
			Name:      "persist_failures_total",
			Help:      "Block saves that could not be queued.",
		}),
	}
}
