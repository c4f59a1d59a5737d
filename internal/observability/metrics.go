package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records account store latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lobby_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// MessageThroughput counts messages processed per room and type.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_message_throughput_total",
		Help: "Total number of messages processed",
	}, []string{"room_id", "message_type"})

	// WebSocketConnectionsTotal is the gauge of open WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lobby_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// ActiveSessions is the gauge of authenticated sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lobby_active_sessions",
		Help: "Number of authenticated sessions",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// EventErrorsTotal counts rejected inbound events by error code.
	EventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_event_errors_total",
		Help: "Total rejected WebSocket events by event type and error code",
	}, []string{"event_type", "code"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ModerationActions counts admin moderation commands by action.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lobby_moderation_actions_total",
		Help: "Total moderation actions applied",
	}, []string{"action"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
