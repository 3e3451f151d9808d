package fkapi

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that opens the breaker.
	DefaultFailureThreshold = 5
	// DefaultBreakerTimeout is the cooldown before an open breaker lets calls through again.
	DefaultBreakerTimeout = 60 * time.Second
)

// State is the circuit breaker state.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // rejecting calls
	StateHalfOpen              // probing the upstream
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker gates calls to the upstream API.
// CircuitBreaker is the in-process implementation; internal/data provides a
// Redis-backed one shared by all workers.
type Breaker interface {
	AllowRequest() bool
	RecordSuccess()
	RecordFailure()
	Snapshot() BreakerSnapshot
}

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	Name            string     `json:"name"`
	State           string     `json:"state"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
}

// CircuitBreaker tracks consecutive failures of a single upstream dependency.
// It is safe for concurrent use.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	timeout          time.Duration
	now              func() time.Time
	logger           *log.Helper
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments fall back
// to DefaultFailureThreshold and DefaultBreakerTimeout.
func NewCircuitBreaker(name string, threshold int, timeout time.Duration, logger log.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: threshold,
		timeout:          timeout,
		now:              time.Now,
		logger:           log.NewHelper(logger),
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.logger.Infow("msg", "circuit breaker closed", "breaker", cb.name, "previous_state", cb.state.String())
	}
	cb.failureCount = 0
	cb.state = StateClosed
	cb.lastFailureTime = time.Time{}
}

// RecordFailure counts a failure. The breaker opens once the threshold is
// reached; a failed half-open call re-opens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	// failureCount is never reset on open -> half_open, so a half-open failure
	// still satisfies failureCount >= failureThreshold here.
	if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
		if cb.state != StateOpen {
			cb.logger.Warnw("msg", "circuit breaker opened",
				"breaker", cb.name,
				"failure_count", cb.failureCount,
				"threshold", cb.failureThreshold,
				"timeout", cb.timeout.String())
		}
		cb.state = StateOpen
	}
}

// IsOpen reports whether calls must be rejected. Once the cooldown has elapsed
// an open breaker moves to half-open and lets calls through again.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return false
	}
	if cb.now().Sub(cb.lastFailureTime) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.logger.Infow("msg", "circuit breaker half-open, allowing requests", "breaker", cb.name)
		return false
	}
	return true
}

// AllowRequest is the negation of IsOpen.
func (cb *CircuitBreaker) AllowRequest() bool {
	return !cb.IsOpen()
}

// State returns the current state without triggering the cooldown transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Snapshot implements Breaker.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := BreakerSnapshot{
		Name:         cb.name,
		State:        cb.state.String(),
		FailureCount: cb.failureCount,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		snap.LastFailureTime = &t
	}
	return snap
}
