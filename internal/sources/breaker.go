package sources

import (
	"sync"
	"time"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows all calls through; failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects all calls without I/O until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen allows a single trial call through.
	BreakerHalfOpen
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker isolates a misbehaving source from consuming retry budget
// or latency from the rest of the pipeline.
//
// State machine: CLOSED -> OPEN -> HALF_OPEN -> CLOSED|OPEN. The breaker
// starts CLOSED. Each recorded failure increments a counter; reaching the
// failure threshold transitions to OPEN and records the next attempt time.
// While OPEN, Allow rejects immediately with a CircuitOpenError until the
// reset timeout elapses, at which point the next call is let through as a
// HALF_OPEN trial. A trial success returns the breaker to CLOSED and resets
// the counter; a trial failure returns it to OPEN with a fresh timeout.
//
// The breaker is owned by one gateway instance and is safe for concurrent use.
type CircuitBreaker struct {
	mu               sync.Mutex
	source           string
	failureThreshold int
	resetTimeout     time.Duration

	state       BreakerState
	failures    int
	nextAttempt time.Time

	// now is replaceable for deterministic tests.
	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker for the named source.
// failureThreshold is the number of consecutive failures that opens the
// breaker; resetTimeout is the cooldown before a half-open trial is allowed.
func NewCircuitBreaker(source string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		source:           source,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. It returns nil when the call is
// allowed, or a *domain.CircuitOpenError when the breaker rejects the call.
// When the reset timeout has elapsed on an OPEN breaker, the calling request
// is admitted as the HALF_OPEN trial; concurrent calls during the trial are
// rejected until the trial resolves.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Before(b.nextAttempt) {
			return domain.NewCircuitOpenError(b.source, b.nextAttempt)
		}
		// Cooldown elapsed: admit this call as the half-open trial.
		b.state = BreakerHalfOpen
		return nil
	case BreakerHalfOpen:
		// A trial is already in flight.
		return domain.NewCircuitOpenError(b.source, b.nextAttempt)
	default:
		return nil
	}
}

// RecordSuccess records a successful call. Any success returns the breaker
// to CLOSED and resets the consecutive-failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
}

// RecordFailure records a failed call. In CLOSED state it increments the
// consecutive-failure counter and opens the breaker at the threshold; in
// HALF_OPEN state the failed trial reopens the breaker with a fresh timeout.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.trip()
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	case BreakerOpen:
		// Already open; nothing to count.
	}
}

// trip opens the breaker. Caller must hold the mutex.
func (b *CircuitBreaker) trip() {
	b.state = BreakerOpen
	b.nextAttempt = b.now().Add(b.resetTimeout)
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset administratively returns the breaker to CLOSED with a zero failure
// count, regardless of its current state.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
	b.nextAttempt = time.Time{}
}
