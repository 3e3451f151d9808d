package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"FootyCollect/internal/biz"
	"FootyCollect/internal/conf"
	"FootyCollect/internal/data"
	"FootyCollect/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer wires the catalog stack on SQLite and the in-memory cache,
// talking to upstream.
func newTestServer(t *testing.T, upstream *httptest.Server, limit *conf.RateLimit) *khttp.Server {
	t.Helper()
	logger := log.DefaultLogger

	confData := &conf.Data{Database: &conf.Database{
		Driver: conf.DriverSQLite,
		Source: filepath.Join(t.TempDir(), "catalog.db"),
	}}
	db, cleanup, err := data.NewDB(confData, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	cache := data.NewCacheClient(nil, logger)
	d, cleanupData, err := data.NewData(confData, logger, nil, cache)
	require.NoError(t, err)
	t.Cleanup(cleanupData)

	reg := data.NewPrometheusRegistry()
	metrics, err := data.NewMetrics(cache, reg, logger)
	require.NoError(t, err)

	confFkapi := &conf.Fkapi{
		BaseURL:    upstream.URL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		CacheTTL:   time.Hour,
		StaleTTL:   24 * time.Hour,
		Breaker:    &conf.FkapiBreaker{FailureThreshold: 5, Timeout: time.Minute, Mode: conf.BreakerModeLocal},
	}
	breaker := data.NewFkapiBreaker(confFkapi, nil, logger)
	client, err := data.NewFkapiClient(confFkapi, cache, breaker, metrics, logger)
	require.NoError(t, err)

	svc := service.NewCatalogService(
		biz.NewCatalogUsecase(client, logger),
		biz.NewKitImportUsecase(client, data.NewCatalogRepo(db, logger), logger),
		biz.NewCollectionSyncUsecase(client, nil, logger),
		biz.NewHealthUsecase(breaker, d, metrics),
		logger,
	)
	limiter := biz.NewRateLimiterUseCase(data.NewRateLimitRepo(cache, logger), limit, logger)

	return NewHTTPServer(&conf.Server{HTTP: &conf.ServerHTTP{Addr: ":0"}}, svc, limiter, reg, logger)
}

func newUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/clubs/search":
			_, _ = io.WriteString(w, `{"results":[{"id":7,"name":"Real Madrid"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func serve(srv *khttp.Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:40000"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestNewHTTPServer_CatalogRoute(t *testing.T) {
	var hits int32
	srv := newTestServer(t, newUpstream(t, &hits), &conf.RateLimit{Enabled: true, Requests: 10, Window: time.Hour})

	rec := serve(srv, "/api/clubs/search?keyword=real")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Real Madrid", body.Results[0]["name"])

	// the second search is served from the cache
	rec = serve(srv, "/api/clubs/search?keyword=real")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNewHTTPServer_Metrics(t *testing.T) {
	var hits int32
	srv := newTestServer(t, newUpstream(t, &hits), &conf.RateLimit{Enabled: false})

	serve(srv, "/api/clubs/search?keyword=real")

	rec := serve(srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "footycollect_fkapi_events_total"), rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestNewHTTPServer_Health(t *testing.T) {
	var hits int32
	srv := newTestServer(t, newUpstream(t, &hits), nil)

	rec := serve(srv, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "memory", body["cache_backend"])
}

func TestNewHTTPServer_RateLimited(t *testing.T) {
	var hits int32
	srv := newTestServer(t, newUpstream(t, &hits), &conf.RateLimit{Enabled: true, Requests: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, serve(srv, "/api/health").Code)

	rec := serve(srv, "/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
