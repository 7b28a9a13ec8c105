package datahierarchy

import (
	"sync"
	"time"
)

// BreakerState is a node of the three-state fault isolator (§4.2, GLOSSARY).
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// CircuitBreaker guards a single tier. It generalizes the teacher's
// two-state FailoverState (healthy/unhealthy-with-cooldown) into the
// closed -> open -> half-open machine required here, and borrows the
// SLA balancer's notion of tracking consecutive failures rather than a
// raw error-rate for the trip decision.
type CircuitBreaker struct {
	mu sync.Mutex

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenProbes      int
	halfOpenSuccesses   int

	failureThreshold int
	openDuration     time.Duration
	maxProbes        int

	lastError string
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(failureThreshold int, openDuration time.Duration, maxProbes int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if openDuration <= 0 {
		openDuration = 60 * time.Second
	}
	if maxProbes <= 0 {
		maxProbes = 3
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		openDuration:     openDuration,
		maxProbes:        maxProbes,
	}
}

// Allow reports whether a call may proceed, transitioning open -> half-open
// once the open duration has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = StateHalfOpen
			b.halfOpenProbes = 0
			b.halfOpenSuccesses = 0
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenProbes >= b.maxProbes {
			return false
		}
		b.halfOpenProbes++
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.maxProbes {
			b.state = StateClosed
			b.consecutiveFailures = 0
		}
	default:
		b.consecutiveFailures = 0
		b.state = StateClosed
	}
}

// RecordFailure records a failed call.
func (b *CircuitBreaker) RecordFailure(errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastError = errMsg

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = time.Now()
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	case StateOpen:
		// already open; refresh the clock is not required
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the last recorded failure message.
func (b *CircuitBreaker) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}
