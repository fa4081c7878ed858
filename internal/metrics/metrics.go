package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vote pipeline metrics
var (
	// VotesTotal tracks processed votes by outcome (accepted/duplicate/rejected/error)
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_total",
			Help: "Total processed votes by outcome",
		},
		[]string{"outcome"},
	)

	// VoteProcessingDuration tracks the vote-to-broadcast pipeline latency in seconds
	VoteProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vote_processing_duration_seconds",
			Help:    "Duration of the full vote pipeline (ledger, tally, promotion, broadcast)",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PromotionsTotal tracks now-playing transitions by trigger (auto/override)
	PromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotions_total",
			Help: "Total now-playing promotions by trigger",
		},
		[]string{"trigger"},
	)
)

// Hub metrics
var (
	// HubActiveRooms tracks number of rooms with at least one live connection
	HubActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_rooms",
			Help: "Number of rooms with at least one live connection",
		},
	)

	// HubConnectedClients tracks total live WebSocket connections
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Total live WebSocket connections across all rooms",
		},
	)

	// HubSlowClientsEvicted tracks clients dropped because their send buffer filled
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total clients evicted due to full send buffer",
		},
	)

	// HubEventsPublished tracks broadcast events by type
	HubEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_published_total",
			Help: "Total broadcast events published by event type",
		},
		[]string{"type"},
	)

	// WebSocketPingFailures tracks failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed WebSocket keepalive pings",
		},
	)

	// WebSocketDeadConnections tracks connections dropped by the liveness timeout
	WebSocketDeadConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_dead_connections_total",
			Help: "Total connections dropped for missing the liveness deadline",
		},
	)
)

// Room worker metrics
var (
	// RoomWorkersActive tracks currently running per-room vote workers
	RoomWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_workers_active",
			Help: "Currently running per-room vote workers",
		},
	)
)

// External service metrics
var (
	// SearchRequestsTotal tracks song search requests by status
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total song search requests by status",
		},
		[]string{"status"},
	)

	// SearchCircuitState tracks the search circuit breaker state (0=closed, 1=half-open, 2=open)
	SearchCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_circuit_state",
			Help: "Song search circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Cross-instance relay metrics
var (
	// RelayMessagesPublished tracks events published to the Redis relay channel
	RelayMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Total events published to the cross-instance relay",
		},
	)

	// RelayMessagesReceived tracks relay messages received from other instances
	RelayMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total relay messages received from other instances",
		},
	)
)
