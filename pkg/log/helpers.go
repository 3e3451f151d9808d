package log

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-kratos/kratos/v2/log"
)

// SlowRequestThresholdMs is the duration above which a request is also
// logged as slow. Upstream retries with backoff take a few seconds.
const SlowRequestThresholdMs int64 = 5000

// LogHelper extends the Kratos log.Helper. Each method tags the entry with a
// "type" field, which the console encoder maps to an emoji.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper wraps logger.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

// tagged builds "msg", msg, the groups in order, then "type", logType.
func tagged(msg, logType string, groups ...[]interface{}) []interface{} {
	all := []interface{}{"msg", msg}
	for _, kvs := range groups {
		all = append(all, kvs...)
	}
	return append(all, "type", logType)
}

// Upstream logs FootballKitArchive client events (🌍).
func (h *LogHelper) Upstream(msg string, kvs ...interface{}) {
	h.Infow(tagged(msg, "upstream", kvs)...)
}

// Cache logs cache store events (📦).
func (h *LogHelper) Cache(msg string, kvs ...interface{}) {
	h.Infow(tagged(msg, "cache", kvs)...)
}

// Breaker logs circuit breaker transitions (🔌). They are warnings: every
// transition means the upstream misbehaved or recovered.
func (h *LogHelper) Breaker(msg string, kvs ...interface{}) {
	h.Warnw(tagged(msg, "breaker", kvs)...)
}

// RateLimit logs rejected requests (🚦).
func (h *LogHelper) RateLimit(msg string, kvs ...interface{}) {
	h.Warnw(tagged(msg, "rate_limit", kvs)...)
}

// Database logs catalog database events (💾).
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	h.Infow(tagged(msg, "database", kvs)...)
}

// Scheduler logs cron job runs (🎯).
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	h.Infow(tagged(msg, "scheduler", kvs)...)
}

// Startup logs process startup (🚀).
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(tagged(msg, "startup", kvs)...)
}

// SlowRequest logs a request that exceeded threshold milliseconds (🐌).
func (h *LogHelper) SlowRequest(ctx context.Context, method, url string, duration, threshold int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("[%s] Slow request detected | %s %s | %dms (threshold: %dms)",
		reqCtx.RequestID, method, url, duration, threshold)

	h.Warnw(tagged(msg, "slow_request", kvs, []interface{}{
		"request_id", reqCtx.RequestID,
		"method", method,
		"url", url,
		"duration_ms", duration,
		"threshold_ms", threshold,
	})...)
}

// RequestWithContext logs a finished HTTP request with the request ID and
// metadata of ctx. Requests above SlowRequestThresholdMs are also logged as
// slow.
func (h *LogHelper) RequestWithContext(ctx context.Context, method, url string, status int, durationMs int64, kvs ...interface{}) {
	reqCtx := GetRequestContext(ctx)

	msg := fmt.Sprintf("%s %s - %d (%dms) | RequestID: %s",
		method, url, status, durationMs, reqCtx.RequestID)

	h.Infow(tagged(msg, "request", kvs, []interface{}{
		"request_id", reqCtx.RequestID,
		"client_ip", reqCtx.ClientIP,
		"method", method,
		"url", url,
		"status", status,
		"duration_ms", durationMs,
	}, metadataFields(reqCtx))...)

	if durationMs > SlowRequestThresholdMs {
		h.SlowRequest(ctx, method, url, durationMs, SlowRequestThresholdMs)
	}
}

// metadataFields flattens the request metadata in key order.
func metadataFields(reqCtx *RequestContext) []interface{} {
	reqCtx.mu.Lock()
	defer reqCtx.mu.Unlock()

	keys := make([]string, 0, len(reqCtx.Metadata))
	for k := range reqCtx.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, reqCtx.Metadata[k])
	}
	return out
}
