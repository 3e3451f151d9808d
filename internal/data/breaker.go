package data

import (
	"context"
	"errors"
	"strconv"
	"time"

	"FootyCollect/pkg/fkapi"
	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	// breakerOpTimeout bounds each Redis round trip of the shared breaker.
	breakerOpTimeout = 500 * time.Millisecond
	// breakerStateTTL expires abandoned failure counters.
	breakerStateTTL = 24 * time.Hour
)

// SharedBreaker is an fkapi.Breaker whose state lives in Redis so every worker
// sees the same failures:
//
//	fkapi:breaker:{name}:failures      consecutive failure count
//	fkapi:breaker:{name}:open          present while open, TTL = cooldown
//	fkapi:breaker:{name}:last_failure  unix seconds of the last failure
//
// Redis errors degrade to an embedded in-process breaker.
type SharedBreaker struct {
	rdb       *redis.Client
	name      string
	threshold int
	timeout   time.Duration
	local     *fkapi.CircuitBreaker
	logger    *pkglog.LogHelper
}

// NewSharedBreaker creates a Redis-backed breaker.
func NewSharedBreaker(rdb *redis.Client, name string, threshold int, timeout time.Duration, logger log.Logger) *SharedBreaker {
	if threshold <= 0 {
		threshold = fkapi.DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = fkapi.DefaultBreakerTimeout
	}
	return &SharedBreaker{
		rdb:       rdb,
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		local:     fkapi.NewCircuitBreaker(name, threshold, timeout, logger),
		logger:    pkglog.NewLogHelper(logger),
	}
}

func (b *SharedBreaker) key(field string) string {
	return BuildCacheKey(CacheKeyBreaker, b.name, field)
}

func (b *SharedBreaker) degraded(op string, err error) {
	b.logger.Breaker("shared circuit breaker unavailable (using in-process state)",
		"breaker", b.name, "op", op, "error", err)
}

func (b *SharedBreaker) failures(ctx context.Context) (int, error) {
	n, err := b.rdb.Get(ctx, b.key("failures")).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// AllowRequest reports false while the open marker exists. Once it expires
// the breaker is half-open and calls go through again.
func (b *SharedBreaker) AllowRequest() bool {
	ctx, cancel := context.WithTimeout(context.Background(), breakerOpTimeout)
	defer cancel()

	open, err := b.rdb.Exists(ctx, b.key("open")).Result()
	if err != nil {
		b.degraded("allow", err)
		return b.local.AllowRequest()
	}
	if open > 0 {
		return false
	}

	count, err := b.failures(ctx)
	if err != nil {
		b.degraded("allow", err)
		return b.local.AllowRequest()
	}
	if count >= b.threshold {
		// like the in-process breaker, half-open lets calls through until one
		// of them succeeds or fails
		b.logger.Debugw("msg", "circuit breaker half-open, allowing request", "breaker", b.name)
	}
	return true
}

// RecordSuccess clears the shared state.
func (b *SharedBreaker) RecordSuccess() {
	ctx, cancel := context.WithTimeout(context.Background(), breakerOpTimeout)
	defer cancel()

	deleted, err := b.rdb.Del(ctx,
		b.key("failures"), b.key("open"), b.key("last_failure"),
	).Result()
	if err != nil {
		b.degraded("success", err)
		b.local.RecordSuccess()
		return
	}
	if deleted > 0 {
		b.logger.Debugw("msg", "circuit breaker reset", "breaker", b.name)
	}
}

// RecordFailure increments the shared counter and opens the breaker once the
// threshold is reached. The counter survives the cooldown, so a failed
// half-open call re-opens the breaker immediately.
func (b *SharedBreaker) RecordFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), breakerOpTimeout)
	defer cancel()

	count, err := b.rdb.Incr(ctx, b.key("failures")).Result()
	if err != nil {
		b.degraded("failure", err)
		b.local.RecordFailure()
		return
	}

	pipe := b.rdb.TxPipeline()
	pipe.Expire(ctx, b.key("failures"), breakerStateTTL)
	pipe.Set(ctx, b.key("last_failure"), time.Now().Unix(), breakerStateTTL)
	if count >= int64(b.threshold) {
		pipe.Set(ctx, b.key("open"), "1", b.timeout)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.degraded("failure", err)
		b.local.RecordFailure()
		return
	}

	if count >= int64(b.threshold) {
		b.logger.Breaker("circuit breaker opened",
			"breaker", b.name,
			"failure_count", count,
			"threshold", b.threshold,
			"timeout", b.timeout.String())
	}
}

// Snapshot implements fkapi.Breaker.
func (b *SharedBreaker) Snapshot() fkapi.BreakerSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), breakerOpTimeout)
	defer cancel()

	open, err := b.rdb.Exists(ctx, b.key("open")).Result()
	if err != nil {
		return b.local.Snapshot()
	}
	count, err := b.failures(ctx)
	if err != nil {
		return b.local.Snapshot()
	}

	snap := fkapi.BreakerSnapshot{
		Name:         b.name,
		State:        fkapi.StateClosed.String(),
		FailureCount: count,
	}
	switch {
	case open > 0:
		snap.State = fkapi.StateOpen.String()
	case count >= b.threshold:
		snap.State = fkapi.StateHalfOpen.String()
	}

	if raw, err := b.rdb.Get(ctx, b.key("last_failure")).Result(); err == nil {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(sec, 0)
			snap.LastFailureTime = &t
		}
	}
	return snap
}
