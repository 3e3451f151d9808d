package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache key prefixes.
const (
	// CacheKeyBreaker is the prefix for shared breaker state: fkapi:breaker:{name}:{field}
	CacheKeyBreaker = "fkapi:breaker"
	// CacheKeyMetrics is the prefix for shared event counters: fkapi_metrics:{event}
	CacheKeyMetrics = "fkapi_metrics"
	// CacheKeyRate is the prefix for inbound rate limit counters: ratelimit:{ip}
	CacheKeyRate = "ratelimit"
)

// Cache backends reported by CacheClient.Backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	// DefaultMemoryCacheSize bounds the in-memory fallback.
	DefaultMemoryCacheSize = 10000
	// memoryMaxTTL caps entries stored without a TTL in the in-memory fallback.
	memoryMaxTTL = 48 * time.Hour
)

// ErrCacheNotFound is returned when a cache key does not exist
var ErrCacheNotFound = errors.New("cache: key not found")

// CacheClient defines the interface for cache operations.
// Implementations must be thread-safe and handle serialization/deserialization.
type CacheClient interface {
	// Get retrieves a value from cache and deserializes it into dest.
	// Returns ErrCacheNotFound if key doesn't exist.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with the specified TTL.
	// The value is serialized to JSON before storage.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key from cache.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr increments a counter. The TTL is applied when the counter is created
	// and is not extended by later increments.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of a key, or 0 if it has none.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Backend names the store, "redis" or "memory".
	Backend() string
}

// NewCacheClient creates a Redis-based cache client, or an in-memory one when
// Redis is unavailable.
func NewCacheClient(rdb *redis.Client, logger log.Logger) CacheClient {
	if rdb == nil {
		pkglog.NewLogHelper(logger).Cache("Redis client is nil, using in-memory cache (state is not shared between workers)",
			"backend", BackendMemory, "size", DefaultMemoryCacheSize)
		return NewMemoryCache(DefaultMemoryCacheSize)
	}
	pkglog.NewLogHelper(logger).Cache("cache store ready", "backend", BackendRedis)
	return &redisCache{client: rdb}
}

// redisCache is the Redis-based implementation of CacheClient.
type redisCache struct {
	client *redis.Client
}

// Get retrieves a value from cache and deserializes it into dest.
// Returns ErrCacheNotFound if the key doesn't exist (redis.Nil).
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache: failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("cache: failed to unmarshal value for key %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set key %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete key %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// Incr runs INCR and EXPIRE NX in one MULTI/EXEC so a counter never
// outlives its window; later increments do not extend the TTL.
func (c *redisCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.ExpireNX(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache: failed to increment key %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (c *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: failed to get ttl of key %s: %w", key, err)
	}
	// -1 (no expiry) and -2 (missing key)
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (c *redisCache) Backend() string { return BackendRedis }

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryCache is a per-process CacheClient on top of an expirable LRU.
// Entries carry their own deadline; the LRU TTL is only an upper bound.
type memoryCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache creates an in-memory CacheClient holding at most size keys.
func NewMemoryCache(size int) CacheClient {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	return &memoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, memoryMaxTTL),
		now: time.Now,
	}
}

func (c *memoryCache) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *memoryCache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	entry, ok := c.lookup(key)
	c.mu.Unlock()
	if !ok {
		return ErrCacheNotFound
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("cache: failed to unmarshal value for key %s: %w", key, err)
	}
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for key %s: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, memoryEntry{data: data, expiresAt: c.deadline(ttl)})
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok, nil
}

func (c *memoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	expiresAt := c.deadline(ttl)
	if entry, ok := c.lookup(key); ok {
		n, err := strconv.ParseInt(string(entry.data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache: value of key %s is not an integer", key)
		}
		count = n
		expiresAt = entry.expiresAt
	}
	count++

	c.lru.Add(key, memoryEntry{data: []byte(strconv.FormatInt(count, 10)), expiresAt: expiresAt})
	return count, nil
}

func (c *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lookup(key)
	if !ok || entry.expiresAt.IsZero() {
		return 0, nil
	}
	return entry.expiresAt.Sub(c.now()), nil
}

func (c *memoryCache) Backend() string { return BackendMemory }

// BuildCacheKey constructs a cache key with the appropriate prefix.
// Examples:
//   - BuildCacheKey(CacheKeyMetrics, "success") -> "fkapi_metrics:success"
//   - BuildCacheKey(CacheKeyBreaker, "fkapi", "open") -> "fkapi:breaker:fkapi:open"
func BuildCacheKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}
