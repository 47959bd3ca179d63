// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"sync"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// RateLimitConfig bounds calls per (tool, caller) key within a window.
type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

// RateLimiter is a sliding-window call counter keyed by (tool, caller).
// Timestamps older than the window are discarded on every check.
type RateLimiter struct {
	windows map[string][]time.Time
	mu      sync.Mutex
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string][]time.Time)}
}

// Key builds the limiter key for a tool and caller pair.
func Key(tool, caller string) string {
	return tool + "\x00" + caller
}

// CanExecute reports whether another call under key fits within cfg.
// A zero MaxCalls or Window disables limiting for the key.
func (rl *RateLimiter) CanExecute(key string, cfg RateLimitConfig) bool {
	if cfg.MaxCalls <= 0 || cfg.Window <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.prune(key, cfg.Window)
	return len(recent) < cfg.MaxCalls
}

// RecordExecution appends the current timestamp for key.
func (rl *RateLimiter) RecordExecution(key string) {
	rl.mu.Lock()
	rl.windows[key] = append(rl.windows[key], time.Now())
	rl.mu.Unlock()
}

// RetryAfter returns how long until the oldest in-window timestamp leaves
// the window, freeing a slot under cfg. Zero when a slot is already free.
func (rl *RateLimiter) RetryAfter(key string, cfg RateLimitConfig) time.Duration {
	if cfg.MaxCalls <= 0 || cfg.Window <= 0 {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.prune(key, cfg.Window)
	if len(recent) < cfg.MaxCalls {
		return 0
	}

	oldest := recent[len(recent)-cfg.MaxCalls]
	remaining := cfg.Window - time.Since(oldest)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the recorded timestamps for key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	delete(rl.windows, key)
	rl.mu.Unlock()
}

// RejectionError builds the classified error for a rate-limited call.
func (rl *RateLimiter) RejectionError(tool, caller string, cfg RateLimitConfig) *errors.ToolError {
	retryAfter := rl.RetryAfter(Key(tool, caller), cfg)
	return errors.Newf(errors.CodeRateLimit, "rate limit exceeded for tool %s", tool).
		WithContext("caller", caller).
		WithContext("max_calls", cfg.MaxCalls).
		WithContext("window", cfg.Window.String()).
		WithContext("retry_after", retryAfter.String())
}

// prune drops timestamps older than window for key. Must hold rl.mu.
func (rl *RateLimiter) prune(key string, window time.Duration) []time.Time {
	cutoff := time.Now().Add(-window)
	stamps := rl.windows[key]

	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(rl.windows, key)
		return nil
	}
	rl.windows[key] = kept
	return kept
}
