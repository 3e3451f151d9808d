package biz

import (
	"context"
	"fmt"
	"time"

	"FootyCollect/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	// DefaultRateLimitRequests is the inbound per-client request budget.
	DefaultRateLimitRequests = 100
	// DefaultRateLimitWindow is the inbound fixed window.
	DefaultRateLimitWindow = time.Hour
)

// RateLimitReasonExceeded is the error reason of a rejected request.
const RateLimitReasonExceeded = "RATE_LIMIT_EXCEEDED"

// RateLimitDecision is the outcome of one rate limit check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// ResetIn is the time until the client's window resets.
	ResetIn time.Duration
}

// RetryAfter is ResetIn in whole seconds, as sent in Retry-After.
func (d RateLimitDecision) RetryAfter() int64 {
	return int64(d.ResetIn.Round(time.Second) / time.Second)
}

// RateLimiterUseCase implements the inbound per-client fixed-window limit
// on the catalog API.
type RateLimiterUseCase struct {
	repo    RateLimitRepo
	enabled bool
	limit   int64
	window  time.Duration
	logger  *log.Helper
}

// NewRateLimiterUseCase creates a new rate limiter use case.
func NewRateLimiterUseCase(repo RateLimitRepo, c *conf.RateLimit, logger log.Logger) *RateLimiterUseCase {
	uc := &RateLimiterUseCase{
		repo:    repo,
		enabled: true,
		limit:   DefaultRateLimitRequests,
		window:  DefaultRateLimitWindow,
		logger:  log.NewHelper(logger),
	}
	if c != nil {
		uc.enabled = c.Enabled
		if c.Requests > 0 {
			uc.limit = int64(c.Requests)
		}
		if c.Window > 0 {
			uc.window = c.Window
		}
	}
	return uc
}

// Enabled reports whether inbound limiting is on.
func (uc *RateLimiterUseCase) Enabled() bool {
	return uc.enabled
}

// Check counts one request from client. Counter failures allow the request
// (graceful degradation).
func (uc *RateLimiterUseCase) Check(ctx context.Context, client string) RateLimitDecision {
	decision := RateLimitDecision{Allowed: true, Limit: uc.limit, Remaining: uc.limit, ResetIn: uc.window}
	if !uc.enabled {
		return decision
	}

	count, resetIn, err := uc.repo.Hit(ctx, client, uc.window)
	if err != nil {
		uc.logger.Warnf("Rate limit check failed for %s: %v (request allowed)", client, err)
		return decision
	}

	decision.ResetIn = resetIn
	decision.Remaining = uc.limit - count
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if count > uc.limit {
		decision.Allowed = false
		uc.logger.Warnw("msg", "inbound rate limit exceeded",
			"client", client,
			"current", count,
			"limit", uc.limit,
			"reset_in", resetIn.String())
	}
	return decision
}

// NewRateLimitExceededError builds the 429 returned to a limited client.
func NewRateLimitExceededError(d RateLimitDecision) error {
	return errors.New(
		429, // HTTP 429 Too Many Requests
		RateLimitReasonExceeded,
		"Rate limit exceeded",
	).WithMetadata(map[string]string{
		"limit":       fmt.Sprintf("%d", d.Limit),
		"retry_after": fmt.Sprintf("%d", d.RetryAfter()),
	})
}
