package fkapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
// Client errors are final except request timeouts and throttling.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	default:
		return true
	}
}

// DecodeError is a 2xx response whose body is not valid JSON.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode upstream response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Snippet returns the start of the offending body for logging.
func (e *DecodeError) Snippet() string {
	return truncate(string(e.Body), 200)
}

// TransportError is a network level failure: connection, timeout or body read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// countsAsUpstreamFailure reports whether err should be charged to the breaker.
func countsAsUpstreamFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// DecodePayload parses a response body and normalizes it to a mapping:
// objects are returned as is, arrays are wrapped as {"results": [...]} and
// any other JSON value as {"data": value}.
func DecodePayload(body []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &DecodeError{Body: body, Err: err}
	}
	return Normalize(v), nil
}

// Normalize wraps a decoded JSON value in a mapping.
func Normalize(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return t
	case []interface{}:
		return map[string]interface{}{"results": t}
	default:
		return map[string]interface{}{"data": t}
	}
}

// ExtractResults pulls the result list out of a normalized payload, looking at
// "results" first and then "data". It never returns nil.
func ExtractResults(payload map[string]interface{}) []interface{} {
	if payload == nil {
		return []interface{}{}
	}
	if v, ok := payload["results"]; ok {
		return asList(v)
	}
	if v, ok := payload["data"]; ok {
		return asList(v)
	}
	return []interface{}{}
}

func asList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok && list != nil {
		return list
	}
	return []interface{}{}
}
