// Package data provides data access layer implementations.
package data

import (
	"context"
	"fmt"
	"time"

	"FootyCollect/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client with connection pool configuration.
// It returns the client, a cleanup function, and an error.
// A missing or unreachable Redis yields a nil client and no error; callers
// fall back to the in-memory cache.
func NewRedisClient(c *conf.Data, logger log.Logger) (*redis.Client, func(), error) {
	helper := log.NewHelper(logger)

	if c == nil || c.Redis == nil {
		helper.Warn("Redis configuration is nil, skipping Redis initialization")
		return nil, func() {}, nil
	}

	opts, err := redisOptions(c.Redis)
	if err != nil {
		return nil, func() {}, err
	}
	if opts == nil {
		helper.Warn("Redis address is empty, skipping Redis initialization")
		return nil, func() {}, nil
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		helper.Warnf("Failed to connect to Redis at %s: %v (continuing with in-memory cache)", opts.Addr, err)
		_ = rdb.Close()
		return nil, func() {}, nil
	}

	helper.Infof("Successfully connected to Redis at %s", opts.Addr)

	cleanup := func() {
		helper.Info("Closing Redis client")
		if err := rdb.Close(); err != nil {
			helper.Errorf("Failed to close Redis client: %v", err)
		}
	}

	return rdb, cleanup, nil
}

// redisOptions builds client options from either the URL or the address
// fields. It returns nil options when neither is set.
func redisOptions(c *conf.Redis) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case c.URL != "":
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	case c.Addr != "":
		opts = &redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}
	default:
		return nil, nil
	}

	opts.PoolSize = 100
	opts.MinIdleConns = 10
	opts.DialTimeout = 3 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	return opts, nil
}
