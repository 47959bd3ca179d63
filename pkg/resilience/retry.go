// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// RetryCondition decides whether a classified error at a given attempt
// number warrants another try. Attempt numbering starts at 1.
type RetryCondition func(cls errors.Classification, attempt int) bool

// RetryStrategy controls bounded retry with exponential backoff and jitter.
type RetryStrategy struct {
	// Name identifies the strategy in configuration and retry history.
	Name string

	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// JitterFactor widens each delay by up to delay*JitterFactor to avoid
	// synchronized retries across callers. Value between 0 and 1.
	JitterFactor float64

	// Condition determines if a classified error should be retried.
	// If nil, the classification's Retryable flag is used.
	Condition RetryCondition
}

// Attempt records one try within a retry sequence.
type Attempt struct {
	Number int           `json:"number"`
	Delay  time.Duration `json:"delay"`
	Error  string        `json:"error,omitempty"`
	At     time.Time     `json:"at"`
}

// ShouldRetry reports whether another attempt is allowed after the given
// attempt number failed with the given classification.
func (rs RetryStrategy) ShouldRetry(cls errors.Classification, attempt int) bool {
	if attempt >= rs.MaxAttempts {
		return false
	}
	if rs.Condition != nil {
		return rs.Condition(cls, attempt)
	}
	return cls.Retryable
}

// Delay computes the backoff before retry number attempt (1-based):
// min(BaseDelay * Multiplier^(attempt-1), MaxDelay), widened by adding
// delay * JitterFactor * random().
func (rs RetryStrategy) Delay(attempt int) time.Duration {
	multiplier := rs.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(rs.BaseDelay) * math.Pow(multiplier, float64(attempt-1)))
	if rs.MaxDelay > 0 && delay > rs.MaxDelay {
		delay = rs.MaxDelay
	}

	if rs.JitterFactor > 0 {
		delay += time.Duration(float64(delay) * rs.JitterFactor * rand.Float64())
	}

	return delay
}

// Do executes fn with retry, returning the last result along with the full
// attempt history. The loop is bounded by MaxAttempts and each sleep honors
// ctx cancellation. Retries within one call are strictly sequential.
func (rs RetryStrategy) Do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, []Attempt, error) {
	maxAttempts := rs.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var history []Attempt
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		record := Attempt{Number: attempt, At: time.Now()}

		if attempt > 1 {
			delay := rs.Delay(attempt - 1)
			record.Delay = delay
			select {
			case <-ctx.Done():
				canceled := errors.New(errors.CodeCanceled, "context canceled during retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", maxAttempts)
				return nil, history, canceled
			case <-time.After(delay):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			history = append(history, record)
			return result, history, nil
		}

		record.Error = err.Error()
		history = append(history, record)
		lastErr = err

		if !rs.ShouldRetry(errors.Classify(err), attempt) {
			break
		}
	}

	return nil, history, lastErr
}

// Built-in strategy names.
const (
	StrategyDefault      = "default"
	StrategyAggressive   = "aggressive"
	StrategyConservative = "conservative"
	StrategyNone         = "none"
)

// DefaultStrategies returns the built-in named strategies.
func DefaultStrategies() map[string]RetryStrategy {
	return map[string]RetryStrategy{
		StrategyDefault: {
			Name:         StrategyDefault,
			MaxAttempts:  3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		StrategyAggressive: {
			Name:         StrategyAggressive,
			MaxAttempts:  5,
			BaseDelay:    100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   1.5,
			JitterFactor: 0.2,
		},
		StrategyConservative: {
			Name:         StrategyConservative,
			MaxAttempts:  2,
			BaseDelay:    5 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   3.0,
			JitterFactor: 0.1,
			Condition: func(cls errors.Classification, _ int) bool {
				return cls.Category == errors.CategoryNetwork ||
					cls.Category == errors.CategoryRateLimit
			},
		},
		StrategyNone: {
			Name:        StrategyNone,
			MaxAttempts: 1,
		},
	}
}

// StrategySet is a named registry of retry strategies.
type StrategySet struct {
	strategies map[string]RetryStrategy
	mu         sync.RWMutex
}

// NewStrategySet creates a registry seeded with the built-in strategies.
func NewStrategySet() *StrategySet {
	return &StrategySet{strategies: DefaultStrategies()}
}

// Register adds or replaces a named strategy.
func (ss *StrategySet) Register(s RetryStrategy) {
	ss.mu.Lock()
	ss.strategies[s.Name] = s
	ss.mu.Unlock()
}

// Get returns the named strategy, falling back to the default strategy for
// unknown names.
func (ss *StrategySet) Get(name string) RetryStrategy {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if s, ok := ss.strategies[name]; ok {
		return s
	}
	return ss.strategies[StrategyDefault]
}
