package log

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type contextKey string

const requestContextKey contextKey = "footycollect_request_context"

// unknownRequestID is reported outside of a request.
const unknownRequestID = "unknown"

// RequestContext carries request tracing data through the context.
type RequestContext struct {
	RequestID string // 10 character base36 ID, e.g. mgrn0zfqda
	ClientIP  string
	StartTime time.Time
	Metadata  map[string]interface{}
	mu        sync.Mutex
}

var (
	randSource  = rand.NewSource(time.Now().UnixNano())
	randMutex   sync.Mutex
	base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateRequestID returns a random 10 character base36 ID.
func GenerateRequestID() string {
	randMutex.Lock()
	defer randMutex.Unlock()

	b := make([]byte, 10)
	for i := range b {
		b[i] = base36Chars[randSource.Int63()%36]
	}
	return string(b)
}

// WithRequestContext attaches a new RequestContext to ctx. The logging
// middleware calls it once per request.
func WithRequestContext(ctx context.Context, requestID, clientIP string) context.Context {
	reqCtx := &RequestContext{
		RequestID: requestID,
		ClientIP:  clientIP,
		StartTime: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
	return context.WithValue(ctx, requestContextKey, reqCtx)
}

// GetRequestContext returns the RequestContext of ctx, or an empty one with
// the "unknown" request ID.
func GetRequestContext(ctx context.Context) *RequestContext {
	if ctx != nil {
		if reqCtx, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{
		RequestID: unknownRequestID,
		Metadata:  make(map[string]interface{}),
	}
}

func GetRequestID(ctx context.Context) string {
	return GetRequestContext(ctx).RequestID
}

func GetClientIP(ctx context.Context) string {
	return GetRequestContext(ctx).ClientIP
}

// SetMetadata records a value on the request context. It is a no-op outside
// of a request.
func SetMetadata(ctx context.Context, key string, value interface{}) {
	reqCtx := GetRequestContext(ctx)
	reqCtx.mu.Lock()
	defer reqCtx.mu.Unlock()
	if reqCtx.Metadata == nil {
		reqCtx.Metadata = make(map[string]interface{})
	}
	reqCtx.Metadata[key] = value
}

func GetMetadata(ctx context.Context, key string) (interface{}, bool) {
	reqCtx := GetRequestContext(ctx)
	reqCtx.mu.Lock()
	defer reqCtx.mu.Unlock()
	value, ok := reqCtx.Metadata[key]
	return value, ok
}

// GetElapsedTime returns the milliseconds since the request started.
func GetElapsedTime(ctx context.Context) int64 {
	reqCtx := GetRequestContext(ctx)
	if reqCtx.StartTime.IsZero() {
		return 0
	}
	return time.Since(reqCtx.StartTime).Milliseconds()
}
