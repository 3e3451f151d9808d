package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"FootyCollect/internal/biz"
	"FootyCollect/internal/conf"
	"FootyCollect/internal/data"
	pkglog "FootyCollect/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps the fields of every entry.
type recordingLogger struct {
	mu      sync.Mutex
	entries []map[string]interface{}
}

func (r *recordingLogger) Log(level log.Level, keyvals ...interface{}) error {
	fields := map[string]interface{}{"level": level}
	for i := 0; i+1 < len(keyvals); i += 2 {
		fields[keyvals[i].(string)] = keyvals[i+1]
	}
	r.mu.Lock()
	r.entries = append(r.entries, fields)
	r.mu.Unlock()
	return nil
}

func (r *recordingLogger) ofType(logType string) []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []map[string]interface{}
	for _, e := range r.entries {
		if e["type"] == logType {
			out = append(out, e)
		}
	}
	return out
}

// newTestServer serves /ping, which echoes the request ID seen by the
// handler, and /missing, which fails with a 404.
func newTestServer(mws ...middleware.Middleware) *khttp.Server {
	srv := khttp.NewServer(khttp.Middleware(mws...))
	r := srv.Route("/")
	r.GET("/ping", func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, "/test/Ping")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return map[string]string{"request_id": pkglog.GetRequestID(ctx)}, nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
	r.GET("/missing", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return nil, kerrors.NotFound("KIT_NOT_FOUND", "no such kit")
		})
		_, err := h(ctx, nil)
		return err
	})
	return srv
}

func newLimiter(requests int) *biz.RateLimiterUseCase {
	repo := data.NewRateLimitRepo(data.NewMemoryCache(100), log.DefaultLogger)
	return biz.NewRateLimiterUseCase(repo, &conf.RateLimit{Enabled: true, Requests: requests, Window: time.Hour}, log.DefaultLogger)
}

func get(srv *khttp.Server, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:51234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestLogging_RequestID(t *testing.T) {
	rec := &recordingLogger{}
	srv := newTestServer(Logging(pkglog.NewLogHelper(rec)))

	t.Run("propagated", func(t *testing.T) {
		resp := get(srv, "/ping", map[string]string{RequestIDHeader: "client0001"})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "client0001", resp.Header().Get(RequestIDHeader))

		var body map[string]string
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "client0001", body["request_id"])
	})

	t.Run("generated", func(t *testing.T) {
		resp := get(srv, "/ping", nil)
		id := resp.Header().Get(RequestIDHeader)
		assert.Len(t, id, 10)

		var body map[string]string
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, id, body["request_id"])
	})
}

func TestLogging_AccessLog(t *testing.T) {
	rec := &recordingLogger{}
	srv := newTestServer(Logging(pkglog.NewLogHelper(rec)))

	get(srv, "/ping?verbose=1", map[string]string{"User-Agent": "footycollect-test"})
	resp := get(srv, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	entries := rec.ofType("request")
	require.Len(t, entries, 2)

	assert.Equal(t, "GET", entries[0]["method"])
	assert.Equal(t, "/ping?verbose=1", entries[0]["url"])
	assert.Equal(t, 200, entries[0]["status"])
	assert.Equal(t, "203.0.113.7", entries[0]["client_ip"])
	assert.Equal(t, "footycollect-test", entries[0]["user_agent"])

	assert.Equal(t, "/missing", entries[1]["url"])
	assert.Equal(t, 404, entries[1]["status"])
}

func TestRateLimit(t *testing.T) {
	rec := &recordingLogger{}
	helper := pkglog.NewLogHelper(rec)
	srv := newTestServer(Logging(helper), RateLimit(newLimiter(2), helper))

	first := get(srv, "/ping", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "1", first.Header().Get(HeaderRateLimitRemaining))
	assert.Empty(t, first.Header().Get(HeaderRetryAfter))

	second := get(srv, "/ping", nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get(HeaderRateLimitRemaining))

	third := get(srv, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "2", third.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "0", third.Header().Get(HeaderRateLimitRemaining))
	assert.Equal(t, "3600", third.Header().Get(HeaderRetryAfter))

	var body struct {
		Code     int               `json:"code"`
		Reason   string            `json:"reason"`
		Message  string            `json:"message"`
		Metadata map[string]string `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &body))
	assert.Equal(t, 429, body.Code)
	assert.Equal(t, biz.RateLimitReasonExceeded, body.Reason)
	assert.Equal(t, "Rate limit exceeded", body.Message)
	assert.Equal(t, "3600", body.Metadata["retry_after"])

	// another client has its own window
	other := get(srv, "/ping", map[string]string{"X-Real-IP": "198.51.100.2"})
	assert.Equal(t, http.StatusOK, other.Code)

	require.Len(t, rec.ofType("rate_limit"), 1)
	requests := rec.ofType("request")
	require.Len(t, requests, 4)
	assert.Equal(t, int64(1), requests[0]["rate_limit_remaining"])
	assert.Equal(t, 429, requests[2]["status"])
}

func TestRateLimit_Disabled(t *testing.T) {
	repo := data.NewRateLimitRepo(data.NewMemoryCache(10), log.DefaultLogger)
	limiter := biz.NewRateLimiterUseCase(repo, &conf.RateLimit{Enabled: false}, log.DefaultLogger)
	srv := newTestServer(RateLimit(limiter, pkglog.NewLogHelper(log.DefaultLogger)))

	for i := 0; i < 3; i++ {
		resp := get(srv, "/ping", nil)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Empty(t, resp.Header().Get(HeaderRateLimitLimit))
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2", "X-Forwarded-For": "192.0.2.9"}, "10.0.0.1:80", "198.51.100.2"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": " 192.0.2.9 , 10.0.0.2"}, "10.0.0.1:80", "192.0.2.9"},
		{"remote addr", nil, "203.0.113.7:51234", "203.0.113.7"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "203.0.113.7", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestExtractHTTPStatus(t *testing.T) {
	assert.Equal(t, 200, extractHTTPStatus(nil))
	assert.Equal(t, 503, extractHTTPStatus(biz.ErrKitDataUnavailable))
	assert.Equal(t, 429, extractHTTPStatus(biz.NewRateLimitExceededError(biz.RateLimitDecision{Limit: 100, ResetIn: time.Minute})))
	assert.Equal(t, 500, extractHTTPStatus(errors.New("boom")))
}
