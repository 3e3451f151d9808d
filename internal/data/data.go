// Package data provides data access layer implementations.
// It handles the cache store, the catalog database and the upstream client.
package data

import (
	"FootyCollect/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewRedisClient,
	NewCacheClient,
	NewDB,
	NewPrometheusRegistry,
	NewMetrics,
	NewFkapiBreaker,
	NewFkapiClient,
)

// Data holds the shared stores of the data layer. The health check reads
// the active cache backend from it.
type Data struct {
	cache CacheClient
}

// NewData creates a new Data instance. rdb is nil when Redis is unavailable.
func NewData(_ *conf.Data, logger log.Logger, rdb *redis.Client, cache CacheClient) (*Data, func(), error) {
	helper := log.NewHelper(logger)

	if rdb == nil {
		helper.Warn("Redis client is nil, cache and counters are per process")
	}

	d := &Data{
		cache: cache,
	}

	cleanup := func() {
		helper.Info("closing the data resources")
	}

	return d, cleanup, nil
}

// CacheBackend names the active cache store.
func (d *Data) CacheBackend() string {
	if d.cache == nil {
		return "none"
	}
	return d.cache.Backend()
}
