package biz

import (
	"context"
	"time"
)

// RateLimitRepo defines the interface for inbound rate limiting counters.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.RateLimitRepo).
type RateLimitRepo interface {
	// Hit counts one request from client in the fixed window and returns the
	// new count and the time until the window resets.
	Hit(ctx context.Context, client string, window time.Duration) (int64, time.Duration, error)
}
