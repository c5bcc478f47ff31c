// Package health implements the per-provider circuit breaker and freshness
// classifier (component C1): it fails calls fast once a provider looks
// unhealthy and derives a staleness label from last-success age.
package health

import (
	"sync"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

// ErrCircuitOpen is returned by CircuitBreaker.Call while the breaker is
// open and the reset timeout has not yet elapsed.
type ErrCircuitOpen struct{ ProviderID string }

func (e ErrCircuitOpen) Error() string {
	return "health: circuit open for provider " + e.ProviderID
}

// CircuitBreaker is a three-state failure-isolation construct for a single
// provider. Its own mutex guards the state, so it is safe for concurrent
// use; fn runs outside the lock.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            model.CircuitState
	failureCount     int
	failureThreshold int
	resetTimeout     time.Duration
	lastFailureTime  time.Time
}

// NewCircuitBreaker returns a breaker in the CLOSED state.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            model.CircuitClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Call invokes fn unless the breaker is open, in which case it fails fast
// with ErrCircuitOpen without calling fn. The OPEN → HALF_OPEN transition is
// lazy: it is only checked here, on a call attempt, never on a background
// timer.
func (b *CircuitBreaker) Call(providerID string, fn func() error) error {
	b.mu.Lock()
	if b.state == model.CircuitOpen {
		if !b.lastFailureTime.IsZero() && time.Since(b.lastFailureTime) >= b.resetTimeout {
			b.state = model.CircuitHalfOpen
		} else {
			b.mu.Unlock()
			return ErrCircuitOpen{ProviderID: providerID}
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failureCount++
		b.lastFailureTime = time.Now()
		if b.failureCount >= b.failureThreshold {
			b.state = model.CircuitOpen
		}
		return err
	}
	b.failureCount = 0
	b.state = model.CircuitClosed
	return nil
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() model.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *CircuitBreaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Reset forces the breaker back to CLOSED with a zeroed failure count.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = model.CircuitClosed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
}
