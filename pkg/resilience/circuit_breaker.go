// SPDX-License-Identifier: Apache-2.0
// Package resilience provides the retry, circuit breaker, rate limiting,
// recovery, and timeout primitives of the tool-execution runtime.
package resilience

import (
	"sync"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed means the circuit breaker is working normally.
	StateClosed CircuitBreakerState = "closed"

	// StateOpen means the circuit breaker is blocking calls.
	StateOpen CircuitBreakerState = "open"

	// StateHalfOpen means the circuit breaker is testing if the tool recovered.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int

	// Timeout is how long the circuit stays open before allowing a trial call.
	Timeout time.Duration

	// Name is the circuit breaker identifier for logging/metrics.
	Name string

	// OnStateChange, when set, is notified of every state transition on
	// its own goroutine so observers cannot block the breaker.
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// CircuitBreaker prevents repeated calls to a persistently failing tool.
// Allow, RecordSuccess, and RecordFailure are the only mutators and are
// safe for concurrent use.
type CircuitBreaker struct {
	config       CircuitBreakerConfig
	state        CircuitBreakerState
	failures     int
	lastFailTime time.Time
	mu           sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given config.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "circuit_breaker"
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether a call may proceed. While open it returns a
// CIRCUIT_BREAKER_OPEN error until the cooldown elapses, at which point the
// next call is admitted in half-open state as a trial.
func (cb *CircuitBreaker) Allow() *errors.ToolError {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailTime) > cb.config.Timeout {
			cb.transition(StateHalfOpen)
		} else {
			retryAfter := cb.config.Timeout - time.Since(cb.lastFailTime)
			cb.mu.Unlock()
			return errors.New(errors.CodeCircuitOpen, "circuit breaker open", nil).
				WithCategory(errors.CategoryResource).
				WithRetryable(false).
				WithRecoverable(false).
				WithContext("breaker", cb.config.Name).
				WithContext("retry_after", retryAfter.String())
		}
	}

	cb.mu.Unlock()
	return nil
}

// RecordSuccess registers a successful call. A half-open trial success
// closes the circuit and zeroes the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateClosed)
	case StateClosed:
		cb.failures = 0
	}
	cb.mu.Unlock()
}

// RecordFailure registers a failed call. Reaching the failure threshold in
// closed state opens the circuit; a half-open trial failure reopens it and
// restarts the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.lastFailTime = time.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(StateOpen)
		}
	}
	cb.mu.Unlock()
}

// transition moves to a new state. Must be called under lock; notifies
// OnStateChange after the lock is released.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures = 0

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.mu.Unlock()
}

// BreakerSet manages one circuit breaker per tool, created lazily.
type BreakerSet struct {
	defaults CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
	mu       sync.Mutex
}

// NewBreakerSet creates a keyed breaker collection sharing default config.
func NewBreakerSet(defaults CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{
		defaults: defaults,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// ForTool returns the breaker for the named tool, creating it on first use.
func (bs *BreakerSet) ForTool(name string) *CircuitBreaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if cb, ok := bs.breakers[name]; ok {
		return cb
	}
	cfg := bs.defaults
	cfg.Name = name
	cb := NewCircuitBreaker(cfg)
	bs.breakers[name] = cb
	return cb
}

// States returns a snapshot of every breaker's current state.
func (bs *BreakerSet) States() map[string]CircuitBreakerState {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	states := make(map[string]CircuitBreakerState, len(bs.breakers))
	for name, cb := range bs.breakers {
		states[name] = cb.State()
	}
	return states
}

// Reset resets the breaker for the named tool if one exists.
func (bs *BreakerSet) Reset(name string) {
	bs.mu.Lock()
	cb, ok := bs.breakers[name]
	bs.mu.Unlock()
	if ok {
		cb.Reset()
	}
}
