// Package fkapi is the client for the FootballKitArchive catalog API.
// Reads go through a cache, an outbound rate limit and a circuit breaker and
// degrade to stale cache entries or empty results instead of returning errors.
package fkapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of attempts made by a read.
	DefaultMaxRetries = 3
	// DefaultCacheTTL is how long a cached response is served as fresh.
	DefaultCacheTTL = time.Hour
	// DefaultStaleTTL is how long past freshness an entry is kept for fallback.
	DefaultStaleTTL = 24 * time.Hour

	// RateLimitKey is the shared counter for outbound requests.
	RateLimitKey = "fkapi_rate_limit"
	// RateLimitWindow is the fixed window of the outbound rate limit.
	RateLimitWindow = time.Minute

	// UserAgent is sent with every upstream request.
	UserAgent = "FootyCollect/1.0"

	cacheKeyPrefix = "fkapi_"
	apiKeyHeader   = "X-API-KEY"
)

// Metric events reported through Metrics.
const (
	EventRequest     = "request"
	EventCacheHit    = "cache_hit"
	EventStaleHit    = "stale_hit"
	EventSuccess     = "success"
	EventFailure     = "failure"
	EventCircuitOpen = "circuit_open"
	EventRateLimited = "rate_limited"
	EventDecodeError = "decode_error"
)

var (
	// ErrCircuitOpen is returned by writes when the breaker rejects the call.
	ErrCircuitOpen = errors.New("fkapi: circuit breaker open")
	// ErrRateLimited is returned by writes when the outbound limit is exhausted.
	ErrRateLimited = errors.New("fkapi: outbound rate limit exceeded")
)

// Cache stores normalized responses. Any Get error is treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Counter is a shared counter with a fixed expiry set on first increment.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Metrics receives client events.
type Metrics interface {
	Inc(ctx context.Context, event string)
}

// Config holds the client settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
	StaleTTL   time.Duration
	// RateLimit is the number of upstream requests allowed per RateLimitWindow
	// across all workers sharing the Counter. Zero disables the limit.
	RateLimit int
	ProxyURL  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache sets the response cache.
func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithCounter sets the counter used by the outbound rate limit.
func WithCounter(counter Counter) Option {
	return func(c *Client) { c.counter = counter }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker replaces the in-process circuit breaker.
func WithBreaker(b Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock replaces the clock used for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client talks to the FootballKitArchive API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	maxRetries int
	cacheTTL   time.Duration
	staleTTL   time.Duration
	rateLimit  int

	http    *http.Client
	cache   Cache
	counter Counter
	metrics Metrics
	breaker Breaker
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	logger  *log.Helper
}

// NewClient creates a Client. Without WithBreaker the client owns an
// in-process CircuitBreaker with default settings.
func NewClient(cfg Config, logger log.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}

	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		cacheTTL:   cfg.CacheTTL,
		staleTTL:   cfg.StaleTTL,
		rateLimit:  cfg.RateLimit,
		sleep:      sleepContext,
		now:        time.Now,
		logger:     log.NewHelper(logger),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = DefaultCacheTTL
	}
	if c.staleTTL < 0 {
		c.staleTTL = 0
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		hc, err := NewHTTPClient(cfg.Timeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		c.http = hc
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker("fkapi", DefaultFailureThreshold, DefaultBreakerTimeout, logger)
	}

	return c, nil
}

// Breaker returns the breaker gating this client.
func (c *Client) Breaker() Breaker {
	return c.breaker
}

// SearchClubs searches clubs by name.
func (c *Client) SearchClubs(ctx context.Context, query string) []interface{} {
	return c.getList(ctx, "/clubs/search", map[string]interface{}{"keyword": query})
}

// GetClubSeasons lists the seasons of a club.
func (c *Client) GetClubSeasons(ctx context.Context, clubID int) []interface{} {
	return c.getList(ctx, "/seasons", map[string]interface{}{"club_id": clubID})
}

// GetClubKits lists the kits of a club in a season.
func (c *Client) GetClubKits(ctx context.Context, clubID, seasonID int) []interface{} {
	return c.getList(ctx, "/kits", map[string]interface{}{
		"club_id":   clubID,
		"season_id": seasonID,
	})
}

// GetKitDetails returns the full kit document, or nil when unavailable.
func (c *Client) GetKitDetails(ctx context.Context, kitID int) map[string]interface{} {
	return c.get(ctx, fmt.Sprintf("/kit-json/%d", kitID), nil, true)
}

// SearchKits searches kits by name.
func (c *Client) SearchKits(ctx context.Context, query string) []interface{} {
	results := c.getList(ctx, "/kits/search", map[string]interface{}{"keyword": query})
	c.logger.Debugw("msg", "kit search finished", "query", query, "results", len(results))
	return results
}

// SearchBrands searches brands by name.
func (c *Client) SearchBrands(ctx context.Context, query string) []interface{} {
	return c.getList(ctx, "/brands/search", map[string]interface{}{"keyword": query})
}

// SearchCompetitions searches competitions by name.
func (c *Client) SearchCompetitions(ctx context.Context, query string) []interface{} {
	return c.getList(ctx, "/competitions/search", map[string]interface{}{"keyword": query})
}

// GetKitsBulk fetches several kits by slug in one request.
func (c *Client) GetKitsBulk(ctx context.Context, slugs []string) []interface{} {
	if len(slugs) == 0 {
		return []interface{}{}
	}
	return c.getList(ctx, "/kits/bulk", map[string]interface{}{"slugs": strings.Join(slugs, ",")})
}

// GetUserCollection returns one page of a scraped user collection, or nil.
func (c *Client) GetUserCollection(ctx context.Context, userID, page, pageSize int, useCache bool) map[string]interface{} {
	return c.get(ctx, fmt.Sprintf("/user-collection/%d", userID), map[string]interface{}{
		"page":      page,
		"page_size": pageSize,
	}, useCache)
}

// ScrapeUserCollection asks the upstream to scrape a user's collection.
// Unlike the reads it is never cached and reports failures to the caller.
func (c *Client) ScrapeUserCollection(ctx context.Context, userID int) (map[string]interface{}, error) {
	endpoint := fmt.Sprintf("/user-collection/%d/scrape", userID)

	c.inc(ctx, EventRequest)
	if !c.breaker.AllowRequest() {
		c.inc(ctx, EventCircuitOpen)
		return nil, ErrCircuitOpen
	}
	if !c.reserve(ctx) {
		c.inc(ctx, EventRateLimited)
		return nil, ErrRateLimited
	}

	payload, err := c.do(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		if ctx.Err() == nil && countsAsUpstreamFailure(err) {
			c.breaker.RecordFailure()
			c.inc(ctx, EventFailure)
		}
		c.logger.Errorw("msg", "scrape request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("scrape user collection %d: %w", userID, err)
	}

	c.breaker.RecordSuccess()
	c.inc(ctx, EventSuccess)
	return payload, nil
}

// CacheKey derives the cache key of a request. Params are serialized with
// sorted keys so insertion order does not matter.
func CacheKey(endpoint string, params map[string]interface{}) string {
	paramsStr := ""
	if len(params) > 0 {
		if b, err := json.Marshal(params); err == nil {
			paramsStr = string(b)
		}
	}
	sum := sha256.Sum256([]byte(endpoint + ":" + paramsStr))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	Payload  map[string]interface{} `json:"payload"`
	CachedAt time.Time              `json:"cached_at"`
}

func (c *Client) getList(ctx context.Context, endpoint string, params map[string]interface{}) []interface{} {
	return ExtractResults(c.get(ctx, endpoint, params, true))
}

// get is the resilient read path: fresh cache, breaker, rate limit, retries
// with exponential backoff, then stale cache or nil.
func (c *Client) get(ctx context.Context, endpoint string, params map[string]interface{}, useCache bool) map[string]interface{} {
	key := CacheKey(endpoint, params)
	c.inc(ctx, EventRequest)

	cached := c.lookup(ctx, key)
	if useCache && cached != nil && c.fresh(cached) {
		c.inc(ctx, EventCacheHit)
		c.logger.Debugw("msg", "cache hit", "endpoint", endpoint)
		return cached.Payload
	}

	if !c.breaker.AllowRequest() {
		c.inc(ctx, EventCircuitOpen)
		c.logger.Warnw("msg", "circuit breaker open, skipping upstream request", "endpoint", endpoint)
		return c.fallback(ctx, endpoint, cached)
	}

	recordFailure := true
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Debugw("msg", "retrying upstream request", "endpoint", endpoint, "attempt", attempt+1, "backoff", backoff.String())
			if err := c.sleep(ctx, backoff); err != nil {
				c.logger.Warnw("msg", "retry aborted", "endpoint", endpoint, "error", err)
				recordFailure = false
				break
			}
		}

		if !c.reserve(ctx) {
			c.inc(ctx, EventRateLimited)
			c.logger.Warnw("msg", "outbound rate limit exceeded", "endpoint", endpoint, "limit", c.rateLimit)
			recordFailure = false
			break
		}

		c.logger.Infow("msg", "requesting upstream", "endpoint", endpoint, "params", params, "attempt", attempt+1)
		payload, err := c.do(ctx, http.MethodGet, endpoint, params)
		if err == nil {
			c.store(ctx, key, payload)
			c.breaker.RecordSuccess()
			c.inc(ctx, EventSuccess)
			return payload
		}

		if ctx.Err() != nil {
			// the caller went away; the upstream is not at fault
			c.logger.Warnw("msg", "upstream request cancelled", "endpoint", endpoint, "attempt", attempt+1, "error", ctx.Err())
			recordFailure = false
			break
		}

		var decodeErr *DecodeError
		var statusErr *StatusError
		var transportErr *TransportError
		if errors.As(err, &decodeErr) {
			c.inc(ctx, EventDecodeError)
			c.logger.Errorw("msg", "malformed upstream response", "endpoint", endpoint, "error", err, "body", decodeErr.Snippet())
			break
		}
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			c.logger.Warnw("msg", "upstream rejected request", "endpoint", endpoint, "status", statusErr.StatusCode)
			recordFailure = false
			break
		}
		if errors.As(err, &statusErr) || errors.As(err, &transportErr) {
			c.logger.Warnw("msg", "upstream request failed", "endpoint", endpoint, "attempt", attempt+1, "error", err)
			continue
		}
		c.logger.Errorw("msg", "unexpected error requesting upstream", "endpoint", endpoint, "attempt", attempt+1, "error", fmt.Sprintf("%+v", err))
	}

	if recordFailure {
		c.breaker.RecordFailure()
		c.inc(ctx, EventFailure)
	}
	return c.fallback(ctx, endpoint, cached)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]interface{}) (map[string]interface{}, error) {
	reqURL := c.endpointURL(endpoint, params)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	return DecodePayload(body)
}

func (c *Client) endpointURL(endpoint string, params map[string]interface{}) string {
	rel := &url.URL{Path: strings.TrimSuffix(c.baseURL.Path, "/") + "/api" + endpoint}
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, fmt.Sprint(v))
		}
		rel.RawQuery = values.Encode()
	}
	return c.baseURL.ResolveReference(rel).String()
}

func (c *Client) lookup(ctx context.Context, key string) *cacheEntry {
	if c.cache == nil {
		return nil
	}
	var entry cacheEntry
	if err := c.cache.Get(ctx, key, &entry); err != nil {
		return nil
	}
	if entry.Payload == nil {
		return nil
	}
	return &entry
}

func (c *Client) fresh(entry *cacheEntry) bool {
	return c.now().Sub(entry.CachedAt) < c.cacheTTL
}

func (c *Client) store(ctx context.Context, key string, payload map[string]interface{}) {
	if c.cache == nil {
		return
	}
	entry := cacheEntry{Payload: payload, CachedAt: c.now()}
	if err := c.cache.Set(ctx, key, entry, c.cacheTTL+c.staleTTL); err != nil {
		c.logger.Warnw("msg", "failed to cache upstream response", "key", key, "error", err)
	}
}

func (c *Client) fallback(ctx context.Context, endpoint string, cached *cacheEntry) map[string]interface{} {
	if cached != nil {
		c.inc(ctx, EventStaleHit)
		c.logger.Warnw("msg", "serving stale cache entry", "endpoint", endpoint, "cached_at", cached.CachedAt)
		return cached.Payload
	}
	return nil
}

// reserve takes one slot of the shared outbound rate limit. Counter errors
// let the request through.
func (c *Client) reserve(ctx context.Context) bool {
	if c.rateLimit <= 0 || c.counter == nil {
		return true
	}
	count, err := c.counter.Incr(ctx, RateLimitKey, RateLimitWindow)
	if err != nil {
		c.logger.Warnw("msg", "rate limit counter unavailable (request allowed)", "error", err)
		return true
	}
	return count <= int64(c.rateLimit)
}

func (c *Client) inc(ctx context.Context, event string) {
	if c.metrics != nil {
		c.metrics.Inc(ctx, event)
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("fkapi: base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fkapi: invalid base URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("fkapi: base URL %q has no host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
