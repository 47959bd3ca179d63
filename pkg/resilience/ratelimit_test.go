// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"testing"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

func TestRateLimiterExactBudget(t *testing.T) {
	rl := NewRateLimiter()
	cfg := RateLimitConfig{MaxCalls: 3, Window: time.Minute}
	key := Key("swap_quote", "session-1")

	for i := 0; i < 3; i++ {
		if !rl.CanExecute(key, cfg) {
			t.Fatalf("call %d should be accepted", i+1)
		}
		rl.RecordExecution(key)
	}

	if rl.CanExecute(key, cfg) {
		t.Errorf("call 4 must be rejected within the window")
	}
	if after := rl.RetryAfter(key, cfg); after <= 0 {
		t.Errorf("expected positive retry-after, got %v", after)
	}
}

func TestRateLimiterWindowElapses(t *testing.T) {
	rl := NewRateLimiter()
	cfg := RateLimitConfig{MaxCalls: 1, Window: 20 * time.Millisecond}
	key := Key("transfer", "session-1")

	rl.RecordExecution(key)
	if rl.CanExecute(key, cfg) {
		t.Fatalf("expected rejection inside window")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.CanExecute(key, cfg) {
		t.Errorf("expected acceptance after window elapsed")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter()
	cfg := RateLimitConfig{MaxCalls: 1, Window: time.Minute}

	rl.RecordExecution(Key("transfer", "alice"))
	if rl.CanExecute(Key("transfer", "alice"), cfg) {
		t.Errorf("expected alice to be limited")
	}
	if !rl.CanExecute(Key("transfer", "bob"), cfg) {
		t.Errorf("expected bob to be unaffected")
	}
	if !rl.CanExecute(Key("balance", "alice"), cfg) {
		t.Errorf("expected other tools to be unaffected")
	}
}

func TestRateLimiterDisabledConfig(t *testing.T) {
	rl := NewRateLimiter()
	key := Key("free_tool", "x")
	for i := 0; i < 100; i++ {
		if !rl.CanExecute(key, RateLimitConfig{}) {
			t.Fatalf("zero config must never limit")
		}
	}
}

func TestRejectionErrorClassification(t *testing.T) {
	rl := NewRateLimiter()
	cfg := RateLimitConfig{MaxCalls: 1, Window: time.Minute}
	rl.RecordExecution(Key("transfer", "alice"))

	err := rl.RejectionError("transfer", "alice", cfg)
	if err.Category != errors.CategoryRateLimit {
		t.Errorf("expected rate_limit category, got %v", err.Category)
	}
	if err.Severity != errors.SeverityLow {
		t.Errorf("expected low severity, got %v", err.Severity)
	}
	if !err.Retryable {
		t.Errorf("rate limit rejections must be retryable")
	}
	if err.Context["retry_after"] == "" {
		t.Errorf("expected computed retry_after in context")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter()
	cfg := RateLimitConfig{MaxCalls: 1, Window: time.Minute}
	key := Key("transfer", "alice")

	rl.RecordExecution(key)
	rl.Reset(key)
	if !rl.CanExecute(key, cfg) {
		t.Errorf("expected acceptance after reset")
	}
}
