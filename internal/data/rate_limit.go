package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// RateLimitRepo implements biz.RateLimitRepo with fixed-window counters in
// the cache store.
type RateLimitRepo struct {
	cache  CacheClient
	logger *log.Helper
}

// NewRateLimitRepo creates a new rate limit repository.
func NewRateLimitRepo(cache CacheClient, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		cache:  cache,
		logger: log.NewHelper(logger),
	}
}

// Hit counts one request from client in the current window and returns the
// new count and the time left until the window resets.
func (r *RateLimitRepo) Hit(ctx context.Context, client string, window time.Duration) (int64, time.Duration, error) {
	if r.cache == nil {
		return 0, 0, fmt.Errorf("cache client is nil")
	}

	key := getRateLimitKey(client)

	count, err := r.cache.Incr(ctx, key, window)
	if err != nil {
		if count == 0 {
			return 0, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
		}
		// counter incremented but expiry failed
		r.logger.Warnf("Failed to set rate limit expiration for %s: %v", client, err)
	}

	ttl, err := r.cache.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = window
	}

	return count, ttl, nil
}

// getRateLimitKey generates a cache key for inbound rate limiting.
// Format: ratelimit:{client}
func getRateLimitKey(client string) string {
	return BuildCacheKey(CacheKeyRate, client)
}
