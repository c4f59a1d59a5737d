package middleware

import (
	"context"
	"time"

	"lobby/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Admission decides whether an inbound websocket event may be processed.
type Admission interface {
	Allow(ctx context.Context, connID, eventType string) bool
}

// NoopAdmission admits everything.
type NoopAdmission struct{}

// Allow always returns true.
func (NoopAdmission) Allow(context.Context, string, string) bool { return true }

// RedisAdmission limits each connection to Limit events per Window using
// the fixed-window counter behind CheckRateLimit. It fails open.
type RedisAdmission struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
}

// Allow counts the event against connID's window.
func (a *RedisAdmission) Allow(ctx context.Context, connID, eventType string) bool {
	allowed, err := CheckRateLimit(ctx, a.Client, "ws", connID, a.Limit, a.Window)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "admission check failed, admitting event",
			"conn_id", connID,
			"event_type", eventType,
			"error", err.Error(),
		)
		return true
	}
	return allowed
}

// NewAdmission returns a Redis-backed limiter when limit is positive and a
// client is available, and NoopAdmission otherwise.
func NewAdmission(rdb *redis.Client, limit int, window time.Duration) Admission {
	if rdb == nil || limit <= 0 {
		return NoopAdmission{}
	}
	return &RedisAdmission{Client: rdb, Limit: limit, Window: window}
}
