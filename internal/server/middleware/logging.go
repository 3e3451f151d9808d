// Package middleware provides HTTP middleware for request logging and inbound
// rate limiting.
package middleware

import (
	"context"
	"net"
	"strings"
	"time"

	pkglog "FootyCollect/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Logging returns a middleware that logs every HTTP request. It reuses or
// generates a request ID, echoes it in the response and injects the request
// context so later log calls carry it. Slow requests get a second entry.
//
// Example output:
//
//	🟢 GET /api/clubs/search?keyword=arsenal - 200 (42ms) | RequestID: mgrn0zfqda
//	🐌 [mgrn0zfqda] Slow request detected | POST /api/kits/import | 13438ms
func Logging(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
					requestID = httpReq.Header.Get(RequestIDHeader)
				}
				if requestID == "" {
					requestID = pkglog.GenerateRequestID()
				}
				tr.ReplyHeader().Set(RequestIDHeader, requestID)
			}

			ctx = pkglog.WithRequestContext(ctx, requestID, ip)

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()
			status := extractHTTPStatus(err)

			logger.RequestWithContext(ctx, method, path, status, duration, "user_agent", userAgent)

			return reply, err
		}
	}
}

// extractClientIP returns the client address.
// Priority: X-Real-IP > X-Forwarded-For (first hop) > RemoteAddr without port.
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if first := strings.TrimSpace(ips[0]); first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}

// extractHTTPStatus maps a handler error to the status the error encoder
// will write.
func extractHTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	return int(errors.FromError(err).Code)
}
