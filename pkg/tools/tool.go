// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the tool registry, parameter validation, and the
// resilient execution engine that wraps every tool call with rate limiting,
// caching, circuit breaking, recovery, and retry.
package tools

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/angleito/seiron-runtime/pkg/resilience"
)

// Tool is a named operation with a parameter schema. Implementations are
// treated as opaque and possibly unreliable; the engine supplies all
// resilience behavior around Execute.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Category returns a grouping tag for discovery.
	Category() string

	// Schema describes the parameters Execute accepts.
	Schema() Schema

	// Execute runs the tool with validated parameters.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	ToolName        string
	ToolDescription string
	ToolCategory    string
	ToolSchema      Schema
	Fn              func(ctx context.Context, params map[string]any) (any, error)
}

func (t ToolFunc) Name() string        { return t.ToolName }
func (t ToolFunc) Description() string { return t.ToolDescription }
func (t ToolFunc) Category() string    { return t.ToolCategory }
func (t ToolFunc) Schema() Schema      { return t.ToolSchema }

func (t ToolFunc) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.Fn(ctx, params)
}

// CachePolicy enables result caching for a tool.
type CachePolicy struct {
	TTL time.Duration
}

// ToolConfig is the per-tool execution configuration.
type ToolConfig struct {
	// Timeout bounds a single attempt. Zero uses the engine default.
	Timeout time.Duration

	// RetryStrategy names the retry strategy. Empty uses the engine default.
	RetryStrategy string

	// RequiredPermissions must all be present in the caller's permission set.
	RequiredPermissions []string

	// RateLimit, when set, bounds calls per caller within a window.
	RateLimit *resilience.RateLimitConfig

	// Cache, when set, stores successful results for identical parameters.
	Cache *CachePolicy

	// MaxConcurrent caps in-flight executions of this tool. Zero means
	// unlimited.
	MaxConcurrent int
}

// ToolStatus is the lifecycle state of a registration.
type ToolStatus string

const (
	// StatusActive tools execute normally.
	StatusActive ToolStatus = "active"

	// StatusInactive tools reject execution until reactivated.
	StatusInactive ToolStatus = "inactive"

	// StatusDeprecated tools execute but emit a deprecation event.
	StatusDeprecated ToolStatus = "deprecated"
)

// UsageStats tracks per-tool invocation counters.
type UsageStats struct {
	Calls        int64     `json:"calls"`
	Successes    int64     `json:"successes"`
	Failures     int64     `json:"failures"`
	LastExecuted time.Time `json:"last_executed"`
}

// Registration is a registered tool with its configuration and state.
// Mutated only by explicit unregister or status change; usage counters are
// updated atomically by the engine.
type Registration struct {
	Tool       Tool
	Config     ToolConfig
	Tags       []string
	Middleware []Middleware
	Registered time.Time

	status atomic.Value // ToolStatus

	calls        atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	lastExecuted atomic.Int64 // unix nanoseconds
}

// Status returns the current lifecycle status.
func (r *Registration) Status() ToolStatus {
	if s, ok := r.status.Load().(ToolStatus); ok {
		return s
	}
	return StatusActive
}

func (r *Registration) setStatus(s ToolStatus) {
	r.status.Store(s)
}

// recordCall bumps the usage counters after an execution completes.
func (r *Registration) recordCall(success bool) {
	r.calls.Add(1)
	if success {
		r.successes.Add(1)
	} else {
		r.failures.Add(1)
	}
	r.lastExecuted.Store(time.Now().UnixNano())
}

// Usage returns a snapshot of the registration's usage counters.
func (r *Registration) Usage() UsageStats {
	stats := UsageStats{
		Calls:     r.calls.Load(),
		Successes: r.successes.Load(),
		Failures:  r.failures.Load(),
	}
	if ns := r.lastExecuted.Load(); ns > 0 {
		stats.LastExecuted = time.Unix(0, ns)
	}
	return stats
}
