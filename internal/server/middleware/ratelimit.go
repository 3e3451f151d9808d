package middleware

import (
	"context"
	"strconv"

	"FootyCollect/internal/biz"
	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit returns a middleware enforcing the per-client fixed window.
// Clients are keyed by IP. Every response carries the limit headers; a
// rejected request gets a 429 with Retry-After.
func RateLimit(limiter *biz.RateLimiterUseCase, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if !limiter.Enabled() {
				return handler(ctx, req)
			}

			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}
			ht, ok := tr.(http.Transporter)
			if !ok {
				return handler(ctx, req)
			}

			client := extractClientIP(ht.Request())
			decision := limiter.Check(ctx, client)

			header := tr.ReplyHeader()
			header.Set(HeaderRateLimitLimit, strconv.FormatInt(decision.Limit, 10))
			header.Set(HeaderRateLimitRemaining, strconv.FormatInt(decision.Remaining, 10))
			pkglog.SetMetadata(ctx, "rate_limit_remaining", decision.Remaining)

			if !decision.Allowed {
				header.Set(HeaderRetryAfter, strconv.FormatInt(decision.RetryAfter(), 10))
				logger.RateLimit("Request rejected",
					"client", client,
					"path", ht.Request().URL.Path,
					"limit", decision.Limit,
					"retry_after", decision.RetryAfter(),
				)
				return nil, biz.NewRateLimitExceededError(decision)
			}

			return handler(ctx, req)
		}
	}
}
