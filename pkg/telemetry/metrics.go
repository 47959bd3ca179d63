// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides observability for the tool-execution runtime:
// trace-aware slog configuration, OpenTelemetry provider setup, and the
// runtime metric instruments.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics tracks tool executions, failures, caching, rate limiting,
// circuit breaker state, and agent health for production monitoring.
type RuntimeMetrics struct {
	// executionCounter tracks total executions by tool and outcome.
	executionCounter metric.Int64Counter

	// failureCounter tracks failures by tool and error category.
	failureCounter metric.Int64Counter

	// cacheCounter tracks cache hits and misses by tool.
	cacheCounter metric.Int64Counter

	// rateLimitCounter tracks rate-limit rejections by tool.
	rateLimitCounter metric.Int64Counter

	// durationHistogram tracks execution duration in milliseconds.
	durationHistogram metric.Float64Histogram

	// breakerStateGauge tracks circuit breaker state per tool
	// (0=open, 1=half-open, 2=closed).
	breakerStateGauge metric.Int64Gauge

	// agentHealthGauge tracks agent health
	// (0=unhealthy, 1=degraded, 2=healthy).
	agentHealthGauge metric.Int64Gauge
}

// NewRuntimeMetrics creates the runtime metric instruments.
func NewRuntimeMetrics() (*RuntimeMetrics, error) {
	meter := otel.Meter("seiron/runtime")

	executionCounter, err := meter.Int64Counter(
		"seiron.tool.executions",
		metric.WithDescription("Total tool executions by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}

	failureCounter, err := meter.Int64Counter(
		"seiron.tool.failures",
		metric.WithDescription("Tool failures by tool and error category"),
	)
	if err != nil {
		return nil, err
	}

	cacheCounter, err := meter.Int64Counter(
		"seiron.cache.lookups",
		metric.WithDescription("Result cache lookups by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitCounter, err := meter.Int64Counter(
		"seiron.ratelimit.rejections",
		metric.WithDescription("Rate-limited calls by tool"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"seiron.tool.duration",
		metric.WithDescription("Tool execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	breakerStateGauge, err := meter.Int64Gauge(
		"seiron.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per tool (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	agentHealthGauge, err := meter.Int64Gauge(
		"seiron.agent.health",
		metric.WithDescription("Agent health status (0=unhealthy, 1=degraded, 2=healthy)"),
	)
	if err != nil {
		return nil, err
	}

	return &RuntimeMetrics{
		executionCounter:  executionCounter,
		failureCounter:    failureCounter,
		cacheCounter:      cacheCounter,
		rateLimitCounter:  rateLimitCounter,
		durationHistogram: durationHistogram,
		breakerStateGauge: breakerStateGauge,
		agentHealthGauge:  agentHealthGauge,
	}, nil
}

// RecordExecution records one completed execution with its outcome.
func (rm *RuntimeMetrics) RecordExecution(ctx context.Context, tool string, success bool, duration time.Duration) {
	if rm == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	rm.executionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("outcome", outcome),
		),
	)
	rm.durationHistogram.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordFailure records a failure by error category.
func (rm *RuntimeMetrics) RecordFailure(ctx context.Context, tool, category string) {
	if rm == nil {
		return
	}
	rm.failureCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("category", category),
		),
	)
}

// RecordCache records a cache hit or miss.
func (rm *RuntimeMetrics) RecordCache(ctx context.Context, tool string, hit bool) {
	if rm == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	rm.cacheCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordRateLimited records a rate-limit rejection.
func (rm *RuntimeMetrics) RecordRateLimited(ctx context.Context, tool string) {
	if rm == nil {
		return
	}
	rm.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordBreakerState records the circuit breaker state for a tool.
func (rm *RuntimeMetrics) RecordBreakerState(ctx context.Context, tool, state string) {
	if rm == nil {
		return
	}
	rm.breakerStateGauge.Record(ctx, breakerStateValue(state),
		metric.WithAttributes(attribute.String("tool", tool)),
	)
}

// RecordAgentHealth records an agent's health status.
func (rm *RuntimeMetrics) RecordAgentHealth(ctx context.Context, agent, status string) {
	if rm == nil {
		return
	}
	rm.agentHealthGauge.Record(ctx, healthStatusValue(status),
		metric.WithAttributes(attribute.String("agent", agent)),
	)
}

func breakerStateValue(state string) int64 {
	switch state {
	case "closed":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}

func healthStatusValue(status string) int64 {
	switch status {
	case "healthy":
		return 2
	case "degraded":
		return 1
	default:
		return 0
	}
}
