// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
	"github.com/angleito/seiron-runtime/pkg/resilience"
)

// Next invokes the remainder of the pipeline.
type Next func(ctx context.Context) *ExecutionResult

// Middleware wraps a tool invocation with cross-cutting behavior.
// Middleware with higher priority runs outermost.
type Middleware struct {
	Name     string
	Priority int
	Handler  func(ctx context.Context, ec *ExecutionContext, next Next) *ExecutionResult
}

// Chain folds middleware around core in descending priority order, so the
// highest-priority middleware is the outermost wrapper.
func Chain(middleware []Middleware, ec *ExecutionContext, core Next) Next {
	sorted := make([]Middleware, len(middleware))
	copy(sorted, middleware)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	next := core
	for i := len(sorted) - 1; i >= 0; i-- {
		mw := sorted[i]
		inner := next
		next = func(ctx context.Context) *ExecutionResult {
			return mw.Handler(ctx, ec, inner)
		}
	}
	return next
}

// LoggingMiddleware records invocation start and completion.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return Middleware{
		Name:     "logging",
		Priority: 100,
		Handler: func(ctx context.Context, ec *ExecutionContext, next Next) *ExecutionResult {
			log := logger
			if log == nil {
				log = slog.Default()
			}
			log.DebugContext(ctx, "tool execution starting",
				"tool", ec.Tool,
				"execution_id", ec.ID,
				"retry_count", ec.RetryCount,
			)

			start := time.Now()
			result := next(ctx)

			if result.Success {
				log.DebugContext(ctx, "tool execution completed",
					"tool", ec.Tool,
					"execution_id", ec.ID,
					"duration", time.Since(start),
				)
			} else {
				log.WarnContext(ctx, "tool execution failed",
					"tool", ec.Tool,
					"execution_id", ec.ID,
					"duration", time.Since(start),
					"error", result.Error,
				)
			}
			return result
		},
	}
}

// TimeoutMiddleware races the inner call against the context's timeout.
// When the timer wins, the inner result is abandoned and a classified
// timeout failure is produced; the underlying operation is not cancelled.
func TimeoutMiddleware() Middleware {
	return Middleware{
		Name:     "timeout",
		Priority: 50,
		Handler: func(ctx context.Context, ec *ExecutionContext, next Next) *ExecutionResult {
			value, err := resilience.WithTimeoutResult(ctx, ec.Timeout, func(ctx context.Context) (interface{}, error) {
				inner := next(ctx)
				if inner.Success {
					return inner, nil
				}
				return inner, inner.Error
			})
			if err != nil {
				if inner, ok := value.(*ExecutionResult); ok {
					return inner
				}
				te := errors.AsToolError(err).WithContext("tool", ec.Tool)
				return failureResult(ec, te)
			}
			return value.(*ExecutionResult)
		},
	}
}

// ErrorEnrichmentMiddleware stamps retry and timeout metadata onto any
// failure before it propagates. It sits outside the timeout race so
// that timeout failures are stamped as well.
func ErrorEnrichmentMiddleware() Middleware {
	return Middleware{
		Name:     "error_enrichment",
		Priority: 60,
		Handler: func(ctx context.Context, ec *ExecutionContext, next Next) *ExecutionResult {
			result := next(ctx)
			if !result.Success && result.Error != nil {
				result.Error.
					WithContext("execution_id", ec.ID).
					WithContext("retry_count", ec.RetryCount).
					WithContext("max_retries", ec.MaxRetries).
					WithContext("timeout", ec.Timeout.String())
			}
			return result
		},
	}
}
