package data

import (
	"fmt"
	"time"

	"FootyCollect/internal/conf"
	"FootyCollect/pkg/fkapi"
	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewFkapiBreaker selects the breaker implementation. Shared mode without a
// reachable Redis falls back to the in-process breaker.
func NewFkapiBreaker(c *conf.Fkapi, rdb *redis.Client, logger log.Logger) fkapi.Breaker {
	var (
		threshold int
		timeout   time.Duration
	)
	if c.Breaker != nil {
		threshold = c.Breaker.FailureThreshold
		timeout = c.Breaker.Timeout
	}

	if c.Breaker != nil && c.Breaker.Mode == conf.BreakerModeShared {
		if rdb != nil {
			return NewSharedBreaker(rdb, "fkapi", threshold, timeout, logger)
		}
		log.NewHelper(logger).Warn("shared circuit breaker requested without Redis, using in-process breaker")
	}
	return fkapi.NewCircuitBreaker("fkapi", threshold, timeout, logger)
}

// NewFkapiClient builds the FootballKitArchive client on top of the cache
// store, the selected breaker and the metrics sink.
func NewFkapiClient(c *conf.Fkapi, cache CacheClient, breaker fkapi.Breaker, metrics *Metrics, logger log.Logger) (*fkapi.Client, error) {
	client, err := fkapi.NewClient(fkapi.Config{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		CacheTTL:   c.CacheTTL,
		StaleTTL:   c.StaleTTL,
		RateLimit:  c.RateLimit,
		ProxyURL:   c.ProxyURL,
	}, logger,
		fkapi.WithCache(cache),
		fkapi.WithCounter(cache),
		fkapi.WithMetrics(metrics),
		fkapi.WithBreaker(breaker),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fkapi client: %w", err)
	}
	pkglog.NewLogHelper(logger).Upstream("FootballKitArchive client ready",
		"base_url", c.BaseURL,
		"breaker", breaker.Snapshot().Name,
		"rate_limit", c.RateLimit)
	return client, nil
}
