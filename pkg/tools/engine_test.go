// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
	"github.com/angleito/seiron-runtime/pkg/resilience"
)

// countingTool fails its first failures calls with a retryable network
// error, then succeeds. The call counter verifies how many times the
// engine actually invoked the operation.
type countingTool struct {
	name     string
	failures int
	calls    atomic.Int64
}

func (t *countingTool) Name() string        { return t.name }
func (t *countingTool) Description() string { return "counting test tool" }
func (t *countingTool) Category() string    { return "test" }
func (t *countingTool) Schema() Schema      { return Schema{} }

func (t *countingTool) Execute(_ context.Context, _ map[string]any) (any, error) {
	n := t.calls.Add(1)
	if int(n) <= t.failures {
		return nil, errors.New(errors.CodeNetwork, "connection timed out", nil)
	}
	return fmt.Sprintf("ok-%d", n), nil
}

// fastStrategies returns a strategy set whose default retries quickly so
// tests do not sleep through production backoff delays.
func fastStrategies() *resilience.StrategySet {
	set := resilience.NewStrategySet()
	set.Register(resilience.RetryStrategy{
		Name:         "fast",
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0,
	})
	return set
}

func newTestEngine(t *testing.T, cfg EngineConfig, opts ...EngineOption) *Engine {
	t.Helper()
	registry := NewRegistry()
	opts = append(opts, WithStrategies(fastStrategies()))
	return NewEngine(registry, cfg, opts...)
}

func TestExecuteSuccess(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "echo"}
	if err := engine.Registry().Register(tool, ToolConfig{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result := engine.Execute(context.Background(), "echo", map[string]any{"q": "hi"})
	if !result.Success {
		t.Fatalf("expected success, got error: %v", result.Error)
	}
	if result.ExecutionID == "" {
		t.Error("expected non-empty execution id")
	}
	if result.Tool != "echo" {
		t.Errorf("expected tool echo, got %s", result.Tool)
	}
	if result.Duration <= 0 {
		t.Error("expected positive duration")
	}
	if result.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", result.RetryCount)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	result := engine.Execute(context.Background(), "missing", nil)
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Error.Code != errors.CodeNotFound {
		t.Errorf("expected code %s, got %s", errors.CodeNotFound, result.Error.Code)
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	// Fails twice, succeeds on the third attempt (maxAttempts is 3)
	tool := &countingTool{name: "flaky", failures: 2}
	engine.Registry().Register(tool, ToolConfig{})

	result := engine.Execute(context.Background(), "flaky", nil)
	if !result.Success {
		t.Fatalf("expected eventual success, got: %v", result.Error)
	}
	if got := tool.calls.Load(); got != 3 {
		t.Errorf("expected 3 invocations, got %d", got)
	}
	if result.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", result.RetryCount)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	cfg.BreakerThreshold = 100 // keep the breaker out of this test
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "down", failures: 100}
	engine.Registry().Register(tool, ToolConfig{})

	result := engine.Execute(context.Background(), "down", nil)
	if result.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if got := tool.calls.Load(); got != 3 {
		t.Errorf("expected 3 invocations, got %d", got)
	}
	if result.Error.Context["retry_strategy"] != "fast" {
		t.Errorf("expected retry history on final error, got %v", result.Error.Context)
	}
}

func TestValidationFailureNotRetried(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "strict"}
	schema := Schema{Params: []Param{
		{Name: "query", Type: TypeString, Required: true},
	}}
	engine.Registry().Register(ToolFunc{
		ToolName:   "strict",
		ToolSchema: schema,
		Fn:         tool.Execute,
	}, ToolConfig{})

	result := engine.Execute(context.Background(), "strict", map[string]any{})
	if result.Success {
		t.Fatal("expected validation failure")
	}
	if result.Error.Code != errors.CodeInvalidInput {
		t.Errorf("expected code %s, got %s", errors.CodeInvalidInput, result.Error.Code)
	}
	if got := tool.calls.Load(); got != 0 {
		t.Errorf("tool must not be invoked on validation failure, got %d calls", got)
	}
}

func TestPermissionDenied(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "secure"}
	engine.Registry().Register(tool, ToolConfig{
		RequiredPermissions: []string{"fs:write"},
	})

	result := engine.Execute(context.Background(), "secure", nil, WithPermissions("fs:read"))
	if result.Success {
		t.Fatal("expected permission failure")
	}
	if result.Error.Code != errors.CodePermissionDenied {
		t.Errorf("expected code %s, got %s", errors.CodePermissionDenied, result.Error.Code)
	}
	if got := tool.calls.Load(); got != 0 {
		t.Errorf("tool must not be invoked without permissions, got %d calls", got)
	}

	// The full permission set passes
	granted := engine.Execute(context.Background(), "secure", nil, WithPermissions("fs:read", "fs:write"))
	if !granted.Success {
		t.Errorf("expected success with permissions, got: %v", granted.Error)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	cfg.BreakerThreshold = 3
	cfg.BreakerCooldown = time.Minute
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "broken", failures: 1000}
	engine.Registry().Register(tool, ToolConfig{RetryStrategy: resilience.StrategyNone})

	// 3 failing executions open the circuit
	for i := 0; i < 3; i++ {
		result := engine.Execute(context.Background(), "broken", nil)
		if result.Success {
			t.Fatalf("execution %d: expected failure", i)
		}
	}
	if got := tool.calls.Load(); got != 3 {
		t.Fatalf("expected 3 invocations before opening, got %d", got)
	}

	// The next call is rejected without invoking the tool
	result := engine.Execute(context.Background(), "broken", nil)
	if result.Success {
		t.Fatal("expected rejection from open breaker")
	}
	if result.Error.Code != errors.CodeCircuitOpen {
		t.Errorf("expected code %s, got %s", errors.CodeCircuitOpen, result.Error.Code)
	}
	if got := tool.calls.Load(); got != 3 {
		t.Errorf("open breaker must not invoke the tool, got %d calls", got)
	}

	// Manual reset closes the circuit again
	engine.ResetBreaker("broken")
	result = engine.Execute(context.Background(), "broken", nil)
	if result.Error.Code == errors.CodeCircuitOpen {
		t.Error("expected reset breaker to allow the call through")
	}
}

func TestCacheIdempotency(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "lookup"}
	engine.Registry().Register(tool, ToolConfig{
		Cache: &CachePolicy{TTL: 50 * time.Millisecond},
	})

	params := map[string]any{"key": "value"}

	first := engine.Execute(context.Background(), "lookup", params)
	if !first.Success || first.CacheHit {
		t.Fatalf("expected uncached success, got hit=%v err=%v", first.CacheHit, first.Error)
	}

	// Identical params within the TTL: served from cache, tool not invoked
	second := engine.Execute(context.Background(), "lookup", params)
	if !second.Success {
		t.Fatalf("expected cached success, got: %v", second.Error)
	}
	if !second.CacheHit {
		t.Error("expected cache hit on identical parameters")
	}
	if second.Data != first.Data {
		t.Errorf("expected identical payload, got %v and %v", first.Data, second.Data)
	}
	if got := tool.calls.Load(); got != 1 {
		t.Errorf("expected 1 invocation, got %d", got)
	}

	// Different params miss
	third := engine.Execute(context.Background(), "lookup", map[string]any{"key": "other"})
	if third.CacheHit {
		t.Error("expected cache miss for different parameters")
	}

	// After the TTL the entry is purged and the tool runs again
	time.Sleep(80 * time.Millisecond)
	fourth := engine.Execute(context.Background(), "lookup", params)
	if fourth.CacheHit {
		t.Error("expected cache miss after TTL expiry")
	}
	if got := tool.calls.Load(); got != 3 {
		t.Errorf("expected 3 invocations after expiry, got %d", got)
	}
}

func TestRateLimitPerCaller(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "limited"}
	engine.Registry().Register(tool, ToolConfig{
		RateLimit: &resilience.RateLimitConfig{MaxCalls: 2, Window: 60 * time.Millisecond},
	})

	session := WithSession("caller-1")

	// N calls within the window succeed
	for i := 0; i < 2; i++ {
		if result := engine.Execute(context.Background(), "limited", nil, session); !result.Success {
			t.Fatalf("call %d: expected success, got: %v", i, result.Error)
		}
	}

	// Call N+1 is rejected with retry-after metadata
	rejected := engine.Execute(context.Background(), "limited", nil, session)
	if rejected.Success {
		t.Fatal("expected rate limit rejection")
	}
	if rejected.Error.Code != errors.CodeRateLimit {
		t.Errorf("expected code %s, got %s", errors.CodeRateLimit, rejected.Error.Code)
	}
	if _, ok := rejected.Error.Context["retry_after"]; !ok {
		t.Error("expected retry_after on rate limit error")
	}

	// A different caller is unaffected
	other := engine.Execute(context.Background(), "limited", nil, WithSession("caller-2"))
	if !other.Success {
		t.Errorf("expected independent budget per caller, got: %v", other.Error)
	}

	// Once the window elapses the original caller may execute again
	time.Sleep(80 * time.Millisecond)
	again := engine.Execute(context.Background(), "limited", nil, session)
	if !again.Success {
		t.Errorf("expected success after window elapsed, got: %v", again.Error)
	}
}

func TestInactiveToolRejected(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	tool := &countingTool{name: "retired"}
	engine.Registry().Register(tool, ToolConfig{})
	engine.Registry().SetStatus("retired", StatusInactive)

	result := engine.Execute(context.Background(), "retired", nil)
	if result.Success {
		t.Fatal("expected inactive tool to be rejected")
	}
	if result.Error.Code != errors.CodeToolInactive {
		t.Errorf("expected code %s, got %s", errors.CodeToolInactive, result.Error.Code)
	}
	if got := tool.calls.Load(); got != 0 {
		t.Errorf("inactive tool must not be invoked, got %d calls", got)
	}

	// Reactivation restores execution
	engine.Registry().SetStatus("retired", StatusActive)
	if result := engine.Execute(context.Background(), "retired", nil); !result.Success {
		t.Errorf("expected success after reactivation, got: %v", result.Error)
	}
}

func TestRecoveryProvidesSubstituteResult(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	engine.Recovery().Register(resilience.RecoveryStrategy{
		Name:       "static-fallback",
		Categories: []errors.Category{errors.CategoryNetwork},
		Priority:   10,
		Recover: func(_ context.Context, _ *errors.ToolError, _ map[string]any) (interface{}, error) {
			return "fallback-data", nil
		},
	})

	tool := &countingTool{name: "recoverable", failures: 1000}
	engine.Registry().Register(tool, ToolConfig{RetryStrategy: resilience.StrategyNone})

	result := engine.Execute(context.Background(), "recoverable", nil)
	if !result.Success {
		t.Fatalf("expected recovery to substitute a result, got: %v", result.Error)
	}
	if result.Data != "fallback-data" {
		t.Errorf("expected fallback data, got %v", result.Data)
	}
	if got := tool.calls.Load(); got != 1 {
		t.Errorf("recovery must end the attempt loop, got %d calls", got)
	}
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	cfg.BatchConcurrency = 4
	engine := newTestEngine(t, cfg)

	engine.Registry().Register(&countingTool{name: "ok"}, ToolConfig{})
	engine.Registry().Register(&countingTool{name: "bad", failures: 1000}, ToolConfig{RetryStrategy: resilience.StrategyNone})

	calls := []BatchCall{
		{Tool: "ok", Params: map[string]any{"n": 1}},
		{Tool: "bad"},
		{Tool: "ok", Params: map[string]any{"n": 2}},
		{Tool: "missing"},
	}

	results := engine.ExecuteBatch(context.Background(), calls)
	if len(results) != len(calls) {
		t.Fatalf("expected %d results, got %d", len(calls), len(results))
	}

	if !results[0].Success || !results[2].Success {
		t.Error("expected ok executions to succeed")
	}
	if results[1].Success {
		t.Error("expected bad execution to fail")
	}
	if results[3].Success || results[3].Error.Code != errors.CodeNotFound {
		t.Error("expected missing tool to fail with NOT_FOUND")
	}
	for i, r := range results {
		if r.Tool != calls[i].Tool {
			t.Errorf("result %d: expected tool %s, got %s", i, calls[i].Tool, r.Tool)
		}
	}
}

func TestMaxConcurrent(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	cfg.BatchConcurrency = 8
	engine := newTestEngine(t, cfg)

	var inFlight, peak atomic.Int64
	engine.Registry().Register(ToolFunc{
		ToolName: "slow",
		Fn: func(_ context.Context, _ map[string]any) (any, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return "done", nil
		},
	}, ToolConfig{MaxConcurrent: 2})

	calls := make([]BatchCall, 6)
	for i := range calls {
		calls[i] = BatchCall{Tool: "slow"}
	}
	engine.ExecuteBatch(context.Background(), calls)

	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent executions, observed %d", got)
	}
}

func TestUsageCounters(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	engine.Registry().Register(&countingTool{name: "mixed", failures: 1}, ToolConfig{RetryStrategy: resilience.StrategyNone})

	engine.Execute(context.Background(), "mixed", nil) // fails once
	engine.Execute(context.Background(), "mixed", nil) // succeeds

	reg, _ := engine.Registry().Get("mixed")
	usage := reg.Usage()
	if usage.Calls != 2 {
		t.Errorf("expected 2 calls, got %d", usage.Calls)
	}
	if usage.Successes != 1 || usage.Failures != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d/%d", usage.Successes, usage.Failures)
	}
	if usage.LastExecuted.IsZero() {
		t.Error("expected last executed timestamp")
	}
}

func TestStats(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	engine.Registry().Register(&countingTool{name: "a"}, ToolConfig{})
	engine.Registry().Register(&countingTool{name: "b", failures: 1000}, ToolConfig{RetryStrategy: resilience.StrategyNone})

	engine.Execute(context.Background(), "a", nil)
	engine.Execute(context.Background(), "b", nil)

	stats := engine.Stats()
	if stats.Tools != 2 {
		t.Errorf("expected 2 tools, got %d", stats.Tools)
	}
	if stats.HistoryLen != 2 {
		t.Errorf("expected 2 history records, got %d", stats.HistoryLen)
	}
	if stats.ErrorRate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", stats.ErrorRate)
	}
	if _, ok := stats.BreakerStates["b"]; !ok {
		t.Error("expected breaker state for b")
	}
}

func TestTimeoutAttemptFails(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DefaultRetryStrategy = "fast"
	engine := newTestEngine(t, cfg)

	engine.Registry().Register(ToolFunc{
		ToolName: "sleepy",
		Fn: func(_ context.Context, _ map[string]any) (any, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		},
	}, ToolConfig{Timeout: 20 * time.Millisecond, RetryStrategy: resilience.StrategyNone})

	start := time.Now()
	result := engine.Execute(context.Background(), "sleepy", nil)
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if result.Error.Code != errors.CodeTimeout {
		t.Errorf("expected code %s, got %s", errors.CodeTimeout, result.Error.Code)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("timeout must abandon the slow call, waited %s", elapsed)
	}
}
