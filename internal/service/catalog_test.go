package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"FootyCollect/internal/biz"
	"FootyCollect/internal/conf"
	"FootyCollect/internal/data"
	"FootyCollect/pkg/fkapi"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKitArchive is a mock implementation of biz.KitArchive for testing.
type MockKitArchive struct {
	mock.Mock
}

func (m *MockKitArchive) list(args mock.Arguments) []interface{} {
	if args.Get(0) == nil {
		return []interface{}{}
	}
	return args.Get(0).([]interface{})
}

func (m *MockKitArchive) object(args mock.Arguments) map[string]interface{} {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]interface{})
}

func (m *MockKitArchive) SearchClubs(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(query))
}

func (m *MockKitArchive) GetClubSeasons(ctx context.Context, clubID int) []interface{} {
	return m.list(m.Called(clubID))
}

func (m *MockKitArchive) GetClubKits(ctx context.Context, clubID, seasonID int) []interface{} {
	return m.list(m.Called(clubID, seasonID))
}

func (m *MockKitArchive) GetKitDetails(ctx context.Context, kitID int) map[string]interface{} {
	return m.object(m.Called(kitID))
}

func (m *MockKitArchive) SearchKits(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(query))
}

func (m *MockKitArchive) SearchBrands(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(query))
}

func (m *MockKitArchive) SearchCompetitions(ctx context.Context, query string) []interface{} {
	return m.list(m.Called(query))
}

func (m *MockKitArchive) GetKitsBulk(ctx context.Context, slugs []string) []interface{} {
	return m.list(m.Called(slugs))
}

func (m *MockKitArchive) GetUserCollection(ctx context.Context, userID, page, pageSize int, useCache bool) map[string]interface{} {
	return m.object(m.Called(userID, page, pageSize, useCache))
}

func (m *MockKitArchive) ScrapeUserCollection(ctx context.Context, userID int) (map[string]interface{}, error) {
	args := m.Called(userID)
	return m.object(args), args.Error(1)
}

type cacheInfo string

func (c cacheInfo) CacheBackend() string { return string(c) }

type testEnv struct {
	srv     *khttp.Server
	archive *MockKitArchive
	breaker *fkapi.CircuitBreaker
	metrics *data.Metrics
}

// setupTestService wires the real use cases and an SQLite catalog behind a
// mocked upstream.
func setupTestService(t *testing.T) *testEnv {
	logger := log.DefaultLogger

	db, cleanup, err := data.NewDB(&conf.Data{Database: &conf.Database{
		Driver: conf.DriverSQLite,
		Source: filepath.Join(t.TempDir(), "catalog.db"),
	}}, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	metrics, err := data.NewMetrics(data.NewMemoryCache(100), prometheus.NewRegistry(), logger)
	require.NoError(t, err)

	archive := new(MockKitArchive)
	breaker := fkapi.NewCircuitBreaker("fkapi", 2, 0, logger)

	svc := NewCatalogService(
		biz.NewCatalogUsecase(archive, logger),
		biz.NewKitImportUsecase(archive, data.NewCatalogRepo(db, logger), logger),
		biz.NewCollectionSyncUsecase(archive, nil, logger),
		biz.NewHealthUsecase(breaker, cacheInfo("memory"), metrics),
		logger,
	)

	srv := khttp.NewServer()
	RegisterCatalogHTTPServer(srv, svc)

	return &testEnv{srv: srv, archive: archive, breaker: breaker, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, target, body string) (int, map[string]interface{}) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func castillaKit() map[string]interface{} {
	return map[string]interface{}{
		"name": "Real Madrid Castilla 2023-24 Home",
		"slug": "real-madrid-castilla-2023-24-home-kit",
		"team": map[string]interface{}{
			"id":      float64(737),
			"name":    "Real Madrid Castilla",
			"slug":    "real-madrid-castilla-kits",
			"country": "es",
		},
		"season":       map[string]interface{}{"id": float64(2), "year": "2023-24"},
		"brand":        map[string]interface{}{"id": float64(5), "name": "adidas", "slug": "adidas-kits"},
		"type":         map[string]interface{}{"name": "Home", "category": "match"},
		"competition":  []interface{}{map[string]interface{}{"id": float64(837), "name": "1ª RFEF", "slug": "1a-rfef-kits"}},
		"main_img_url": "https://cdn.footballkitarchive.com/2023/06/14/PlusudOvMM3EbPj.jpg",
	}
}

func TestCatalogHTTP_Search(t *testing.T) {
	env := setupTestService(t)
	club := map[string]interface{}{"id": float64(1), "name": "Arsenal"}
	env.archive.On("SearchClubs", "arsenal").Return([]interface{}{club})
	env.archive.On("SearchBrands", "ad").Return([]interface{}{map[string]interface{}{"name": "adidas"}})

	code, body := env.do(t, http.MethodGet, "/api/clubs/search?keyword=arsenal", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{club}, body["results"])

	code, body = env.do(t, http.MethodGet, "/api/brands/search?keyword=ad", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["results"], 1)
}

func TestCatalogHTTP_SearchQueryTooShort(t *testing.T) {
	env := setupTestService(t)

	tests := []string{
		"/api/kits/search?keyword=ab",
		"/api/brands/search?keyword=a",
		"/api/competitions/search?keyword=a",
		"/api/seasons/search?keyword=2",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			code, body := env.do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, []interface{}{}, body["results"])
		})
	}

	env.archive.AssertNotCalled(t, "SearchKits", mock.Anything)
	env.archive.AssertNotCalled(t, "SearchBrands", mock.Anything)
}

func TestCatalogHTTP_SearchSeasons(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("SearchKits", "castilla").Return([]interface{}{
		map[string]interface{}{"season": map[string]interface{}{"id": float64(2), "year": "2023-24"}},
	})
	env.archive.On("SearchClubs", "castilla").Return([]interface{}{})

	code, body := env.do(t, http.MethodGet, "/api/seasons/search?keyword=castilla", "")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body["results"], 1)
	season := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(2), season["id"])
	assert.Equal(t, "2023-24", season["name"])
	assert.Nil(t, season["logo"])
}

func TestCatalogHTTP_ClubLookups(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("GetClubSeasons", 737).Return([]interface{}{map[string]interface{}{"id": float64(2)}})
	env.archive.On("GetClubKits", 737, 2).Return(nil)

	code, body := env.do(t, http.MethodGet, "/api/clubs/737/seasons", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["results"], 1)

	code, body = env.do(t, http.MethodGet, "/api/clubs/737/seasons/2/kits", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{}, body["results"])
}

func TestCatalogHTTP_InvalidID(t *testing.T) {
	env := setupTestService(t)

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/kit/abc"},
		{http.MethodPost, "/api/kit/abc/import"},
		{http.MethodGet, "/api/clubs/arsenal/seasons"},
		{http.MethodGet, "/api/clubs/1/seasons/last/kits"},
		{http.MethodPost, "/api/user-collection/me/scrape"},
		{http.MethodGet, "/api/catalog/kits?page=two"},
		{http.MethodGet, "/api/catalog/kits/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			code, body := env.do(t, tt.method, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, float64(400), body["code"])
		})
	}
	env.archive.AssertExpectations(t)
}

func TestCatalogHTTP_GetKit(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("GetKitDetails", 170001).Return(castillaKit())
	env.archive.On("GetKitDetails", 404).Return(nil)

	code, body := env.do(t, http.MethodGet, "/api/kit/170001", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "real-madrid-castilla-2023-24-home-kit", body["slug"])

	code, body = env.do(t, http.MethodGet, "/api/kit/404", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "KIT_DATA_UNAVAILABLE", body["reason"])
	assert.Equal(t, "Kit data temporarily unavailable", body["message"])
}

func TestCatalogHTTP_ImportKit(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("GetKitDetails", 170001).Return(castillaKit())
	env.archive.On("GetKitDetails", 404).Return(nil)

	code, body := env.do(t, http.MethodPost, "/api/kit/170001/import", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(170001), body["id_fka"])
	assert.Equal(t, "Real Madrid Castilla", body["team"])
	assert.Equal(t, "2023-24", body["season"])
	assert.Equal(t, []interface{}{"1ª RFEF"}, body["competitions"])

	// importing twice keeps one row
	code, _ = env.do(t, http.MethodPost, "/api/kit/170001/import", "")
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodGet, "/api/catalog/kits", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(defaultStoredKitsPageSize), body["page_size"])

	code, body = env.do(t, http.MethodPost, "/api/kit/404/import", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "KIT_DATA_UNAVAILABLE", body["reason"])
}

func TestCatalogHTTP_StoredKit(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("GetKitDetails", 170001).Return(castillaKit())

	code, body := env.do(t, http.MethodGet, "/api/catalog/kits/170001", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "KIT_NOT_STORED", body["reason"])

	code, _ = env.do(t, http.MethodPost, "/api/kit/170001/import", "")
	require.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodGet, "/api/catalog/kits/170001", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(170001), body["id_fka"])
	assert.Equal(t, "real-madrid-castilla-2023-24-home-kit", body["slug"])
	assert.Equal(t, "adidas", body["brand"])

	// served from the catalog, not the upstream
	env.archive.AssertNumberOfCalls(t, "GetKitDetails", 1)
}

func TestCatalogHTTP_ImportKits(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("GetKitsBulk", []string{"real-madrid-castilla-2023-24-home-kit", "gone"}).
		Return([]interface{}{castillaKit()})

	code, body := env.do(t, http.MethodPost, "/api/kits/import",
		`{"slugs": ["real-madrid-castilla-2023-24-home-kit", " gone ", ""]}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["requested"])
	assert.Equal(t, float64(1), body["imported"])
	assert.Equal(t, float64(0), body["failed"])
	assert.Equal(t, []interface{}{"gone"}, body["missing"])

	code, body = env.do(t, http.MethodPost, "/api/kits/import", `{"slugs": []}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "SLUGS_REQUIRED", body["reason"])
}

func TestCatalogHTTP_StoredKitsPageSize(t *testing.T) {
	env := setupTestService(t)

	code, body := env.do(t, http.MethodGet, "/api/catalog/kits?page=3&page_size=500", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["page"])
	assert.Equal(t, float64(maxStoredKitsPageSize), body["page_size"])
	assert.Equal(t, []interface{}{}, body["results"])
}

func TestCatalogHTTP_ScrapeUserCollection(t *testing.T) {
	env := setupTestService(t)
	env.archive.On("ScrapeUserCollection", 1).Return(map[string]interface{}{"task_id": "abc"}, nil)
	env.archive.On("ScrapeUserCollection", 2).Return(map[string]interface{}{"status": "error", "error": "user not found"}, nil)
	env.archive.On("ScrapeUserCollection", 3).Return(nil, fkapi.ErrCircuitOpen)
	env.archive.On("ScrapeUserCollection", 4).Return(nil, nil)

	code, body := env.do(t, http.MethodPost, "/api/user-collection/1/scrape", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "abc", body["task_id"])

	code, body = env.do(t, http.MethodPost, "/api/user-collection/2/scrape", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "SCRAPE_REJECTED", body["reason"])
	assert.Contains(t, body["message"], "user not found")

	code, body = env.do(t, http.MethodPost, "/api/user-collection/3/scrape", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "FKAPI_UNAVAILABLE", body["reason"])

	code, body = env.do(t, http.MethodPost, "/api/user-collection/4/scrape", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)
}

func TestCatalogHTTP_UserCollection(t *testing.T) {
	env := setupTestService(t)
	page := map[string]interface{}{
		"status":     "completed",
		"user":       map[string]interface{}{"username": "collector"},
		"data":       map[string]interface{}{"entries": []interface{}{map[string]interface{}{"id": "a"}}},
		"pagination": map[string]interface{}{"total_pages": float64(1)},
	}
	env.archive.On("GetUserCollection", 9, 1, 50, false).Return(page)
	env.archive.On("GetUserCollection", 10, 1, biz.DefaultCollectionPageSize, false).Return(map[string]interface{}{
		"status": "completed",
		"data":   map[string]interface{}{"entries": []interface{}{}},
	}).Once()

	code, body := env.do(t, http.MethodGet, "/api/user-collection/9?page_size=50", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(9), body["user_id"])
	assert.Len(t, body["entries"], 1)
	assert.Equal(t, "collector", body["user"].(map[string]interface{})["username"])

	// a finished scrape without entries is polled until the wait runs out
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/user-collection/10?wait=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestCatalogHTTP_Health(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	env.metrics.Inc(ctx, fkapi.EventRequest)

	code, body := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["cache_backend"])

	env.breaker.RecordFailure()
	env.breaker.RecordFailure()

	code, body = env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	breaker := body["circuit_breaker"].(map[string]interface{})
	assert.Equal(t, "open", breaker["state"])
	assert.Equal(t, float64(2), breaker["failure_count"])

	code, body = env.do(t, http.MethodGet, "/api/fkapi/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body[fkapi.EventRequest])
	assert.Equal(t, float64(0), body[fkapi.EventFailure])
}
