// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"time"

	"github.com/google/uuid"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// ExecutionContext carries the metadata of one tool invocation. It is
// created per call and immutable except for the retry-count increment.
type ExecutionContext struct {
	ID        string
	SessionID string
	Tool      string
	Params    map[string]any

	Source      string
	Priority    int
	Tags        map[string]string
	RetryCount  int
	MaxRetries  int
	Permissions []string

	StartedAt time.Time
	Timeout   time.Duration
}

// newExecutionContext builds a context with a fresh execution id.
func newExecutionContext(tool string, params map[string]any) *ExecutionContext {
	return &ExecutionContext{
		ID:        uuid.NewString(),
		Tool:      tool,
		Params:    params,
		Tags:      make(map[string]string),
		StartedAt: time.Now(),
	}
}

// ExecutionResult is the outcome of one invocation. Execution either
// succeeds or fails with a classified error; results are always returned
// as values, never raised.
type ExecutionResult struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   *errors.ToolError `json:"error,omitempty"`

	ExecutionID string        `json:"execution_id"`
	Tool        string        `json:"tool"`
	Duration    time.Duration `json:"duration"`
	CacheHit    bool          `json:"cache_hit,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	RetryCount  int           `json:"retry_count"`
}

// successResult builds a successful result stamped from the context.
func successResult(ec *ExecutionContext, data any) *ExecutionResult {
	return &ExecutionResult{
		Success:     true,
		Data:        data,
		ExecutionID: ec.ID,
		Tool:        ec.Tool,
		Duration:    time.Since(ec.StartedAt),
		Timestamp:   time.Now(),
		RetryCount:  ec.RetryCount,
	}
}

// failureResult builds a failed result stamped from the context.
func failureResult(ec *ExecutionContext, err *errors.ToolError) *ExecutionResult {
	return &ExecutionResult{
		Success:     false,
		Error:       err,
		ExecutionID: ec.ID,
		Tool:        ec.Tool,
		Duration:    time.Since(ec.StartedAt),
		Timestamp:   time.Now(),
		RetryCount:  ec.RetryCount,
	}
}

// ExecOption customizes a single invocation.
type ExecOption func(*ExecutionContext)

// WithSession tags the invocation with a session id.
func WithSession(id string) ExecOption {
	return func(ec *ExecutionContext) { ec.SessionID = id }
}

// WithSource records where the invocation originated.
func WithSource(source string) ExecOption {
	return func(ec *ExecutionContext) { ec.Source = source }
}

// WithPriority sets the invocation priority.
func WithPriority(priority int) ExecOption {
	return func(ec *ExecutionContext) { ec.Priority = priority }
}

// WithTag attaches a free-form tag.
func WithTag(key, value string) ExecOption {
	return func(ec *ExecutionContext) { ec.Tags[key] = value }
}

// WithPermissions sets the caller's permission set.
func WithPermissions(perms ...string) ExecOption {
	return func(ec *ExecutionContext) { ec.Permissions = perms }
}
