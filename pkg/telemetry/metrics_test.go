// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNewRuntimeMetrics(t *testing.T) {
	rm, err := NewRuntimeMetrics()
	if err != nil {
		t.Fatalf("failed to create runtime metrics: %v", err)
	}
	if rm == nil {
		t.Fatal("expected non-nil RuntimeMetrics")
	}
}

func TestRecordExecution(t *testing.T) {
	rm, _ := NewRuntimeMetrics()
	ctx := context.Background()

	rm.RecordExecution(ctx, "web_search", true, 120*time.Millisecond)
	rm.RecordExecution(ctx, "web_search", false, 2*time.Second)

	// Nil metrics should not panic
	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordExecution(ctx, "web_search", true, time.Millisecond)
}

func TestRecordFailure(t *testing.T) {
	rm, _ := NewRuntimeMetrics()
	ctx := context.Background()

	rm.RecordFailure(ctx, "web_search", "network")
	rm.RecordFailure(ctx, "calculator", "validation")

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordFailure(ctx, "web_search", "timeout")
}

func TestRecordCache(t *testing.T) {
	rm, _ := NewRuntimeMetrics()
	ctx := context.Background()

	rm.RecordCache(ctx, "web_search", true)
	rm.RecordCache(ctx, "web_search", false)

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordCache(ctx, "web_search", true)
}

func TestRecordBreakerState(t *testing.T) {
	rm, _ := NewRuntimeMetrics()
	ctx := context.Background()

	rm.RecordBreakerState(ctx, "web_search", "closed")
	rm.RecordBreakerState(ctx, "web_search", "open")
	rm.RecordBreakerState(ctx, "web_search", "half-open")

	var nilMetrics *RuntimeMetrics
	nilMetrics.RecordBreakerState(ctx, "web_search", "closed")
}

func TestBreakerStateValue(t *testing.T) {
	cases := map[string]int64{
		"open":      0,
		"half-open": 1,
		"closed":    2,
		"unknown":   0,
	}
	for state, want := range cases {
		if got := breakerStateValue(state); got != want {
			t.Errorf("breakerStateValue(%q) = %d, want %d", state, got, want)
		}
	}
}

func TestHealthStatusValue(t *testing.T) {
	cases := map[string]int64{
		"unhealthy": 0,
		"degraded":  1,
		"healthy":   2,
	}
	for status, want := range cases {
		if got := healthStatusValue(status); got != want {
			t.Errorf("healthStatusValue(%q) = %d, want %d", status, got, want)
		}
	}
}

func TestConcurrentMetrics(t *testing.T) {
	rm, _ := NewRuntimeMetrics()
	ctx := context.Background()

	done := make(chan bool, 3)

	go func() {
		for i := 0; i < 10; i++ {
			rm.RecordExecution(ctx, "web_search", i%2 == 0, time.Duration(i)*time.Millisecond)
			rm.RecordFailure(ctx, "web_search", "network")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 10; i++ {
			rm.RecordCache(ctx, "calculator", i%2 == 0)
			rm.RecordRateLimited(ctx, "calculator")
		}
		done <- true
	}()

	go func() {
		states := []string{"closed", "open", "half-open"}
		statuses := []string{"healthy", "degraded", "unhealthy"}
		for i := 0; i < 10; i++ {
			rm.RecordBreakerState(ctx, "web_search", states[i%3])
			rm.RecordAgentHealth(ctx, "researcher", statuses[i%3])
		}
		done <- true
	}()

	<-done
	<-done
	<-done
}
