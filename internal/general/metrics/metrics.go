package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsActive tracks live WebSocket connections by role.
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of live WebSocket connections",
		},
		[]string{"role"},
	)

	// EventsTotal counts inbound client events by type and outcome.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Inbound client events processed",
		},
		[]string{"event", "outcome"}, // outcome: ok | malformed | forbidden | error
	)

	// DeliveriesDropped counts events dropped because the target was offline
	// or its connection write failed.
	DeliveriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_dropped_total",
			Help: "Best-effort deliveries dropped",
		},
		[]string{"reason"}, // reason: offline | write_failed | fanout_backlog
	)

	// ProviderRequestsTotal counts external directions/geocoding calls.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_provider_requests_total",
			Help: "External provider calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok | error | cached
	)

	// RouteFallbacksTotal counts directions requests answered with the
	// local straight-line estimate instead of a provider route.
	RouteFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_route_fallbacks_total",
			Help: "Directions requests served by the local approximation",
		},
	)
)
