package biz

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"FootyCollect/internal/conf"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

// Helper function to create a test RateLimiterUseCase
func newTestRateLimiter(repo *MockRateLimitRepo, c *conf.RateLimit) *RateLimiterUseCase {
	logger := log.NewStdLogger(os.Stdout)
	return NewRateLimiterUseCase(repo, c, logger)
}

// Test Check - Within limit
func TestCheck_WithinLimit(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo, &conf.RateLimit{Enabled: true, Requests: 100, Window: time.Hour})
	ctx := context.Background()

	mockRepo.On("Hit", ctx, "203.0.113.7", time.Hour).Return(int64(40), 30*time.Minute, nil)

	d := uc.Check(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(100), d.Limit)
	assert.Equal(t, int64(60), d.Remaining)
	assert.Equal(t, 30*time.Minute, d.ResetIn)
	mockRepo.AssertExpectations(t)
}

// Test Check - Limit reached exactly is still allowed
func TestCheck_AtLimit(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo, &conf.RateLimit{Enabled: true, Requests: 100, Window: time.Hour})
	ctx := context.Background()

	mockRepo.On("Hit", ctx, "203.0.113.7", time.Hour).Return(int64(100), time.Minute, nil)

	d := uc.Check(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.Zero(t, d.Remaining)
}

// Test Check - Limit exceeded
func TestCheck_Exceeded(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo, &conf.RateLimit{Enabled: true, Requests: 100, Window: time.Hour})
	ctx := context.Background()

	mockRepo.On("Hit", ctx, "203.0.113.7", time.Hour).Return(int64(101), 90*time.Second, nil)

	d := uc.Check(ctx, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)

	err := NewRateLimitExceededError(d)
	kerr := kerrors.FromError(err)
	assert.Equal(t, int32(429), kerr.Code)
	assert.Equal(t, RateLimitReasonExceeded, kerr.Reason)
	assert.Equal(t, "90", kerr.Metadata["retry_after"])
	assert.Equal(t, "100", kerr.Metadata["limit"])
}

// Test Check - Counter failure allows the request (graceful degradation)
func TestCheck_RepoFailure(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo, &conf.RateLimit{Enabled: true, Requests: 10, Window: time.Minute})
	ctx := context.Background()

	mockRepo.On("Hit", ctx, "203.0.113.7", time.Minute).Return(int64(0), time.Duration(0), errors.New("redis down"))

	d := uc.Check(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(10), d.Remaining)
}

// Test Check - Disabled limiter never counts
func TestCheck_Disabled(t *testing.T) {
	mockRepo := new(MockRateLimitRepo)
	uc := newTestRateLimiter(mockRepo, &conf.RateLimit{Enabled: false})

	assert.False(t, uc.Enabled())
	assert.True(t, uc.Check(context.Background(), "203.0.113.7").Allowed)
	mockRepo.AssertNotCalled(t, "Hit")
}

// Test defaults
func TestNewRateLimiterUseCase_Defaults(t *testing.T) {
	uc := newTestRateLimiter(new(MockRateLimitRepo), nil)

	assert.True(t, uc.Enabled())
	assert.Equal(t, int64(DefaultRateLimitRequests), uc.limit)
	assert.Equal(t, DefaultRateLimitWindow, uc.window)
}
