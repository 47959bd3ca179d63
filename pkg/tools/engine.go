// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/angleito/seiron-runtime/pkg/core"
	"github.com/angleito/seiron-runtime/pkg/errors"
	"github.com/angleito/seiron-runtime/pkg/resilience"
	"github.com/angleito/seiron-runtime/pkg/telemetry"
)

// EngineConfig holds the engine-wide defaults.
type EngineConfig struct {
	// DefaultTimeout bounds attempts for tools without their own timeout.
	DefaultTimeout time.Duration

	// DefaultRetryStrategy names the strategy used by tools that do not
	// pick one.
	DefaultRetryStrategy string

	// BreakerThreshold is the consecutive-failure count that opens a
	// tool's circuit.
	BreakerThreshold int

	// BreakerCooldown is how long an open circuit rejects calls.
	BreakerCooldown time.Duration

	// HistorySize and HistoryWindow bound the retained execution history.
	HistorySize   int
	HistoryWindow time.Duration

	// CacheSize is the per-tool result cache capacity.
	CacheSize int

	// BatchConcurrency caps parallel members of a batch. Zero means 10.
	BatchConcurrency int
}

// DefaultEngineConfig returns production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTimeout:       30 * time.Second,
		DefaultRetryStrategy: resilience.StrategyDefault,
		BreakerThreshold:     5,
		BreakerCooldown:      30 * time.Second,
		HistorySize:          1000,
		HistoryWindow:        time.Hour,
		CacheSize:            128,
		BatchConcurrency:     10,
	}
}

// Engine executes registered tools with validation, permissions, rate
// limiting, caching, circuit breaking, recovery, and retry around every
// call. All state is owned by the engine instance; there are no package
// globals.
type Engine struct {
	registry   *Registry
	strategies *resilience.StrategySet
	breakers   *resilience.BreakerSet
	limiter    *resilience.RateLimiter
	cache      *ResultCache
	recovery   *resilience.RecoveryChain
	history    *History
	emitter    core.EventEmitter
	metrics    *telemetry.RuntimeMetrics
	logger     *slog.Logger
	global     []Middleware
	cfg        EngineConfig

	sems  map[string]chan struct{}
	semMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmitter sets the event emitter.
func WithEmitter(emitter core.EventEmitter) EngineOption {
	return func(e *Engine) { e.emitter = emitter }
}

// WithMetrics attaches runtime metrics recording.
func WithMetrics(metrics *telemetry.RuntimeMetrics) EngineOption {
	return func(e *Engine) { e.metrics = metrics }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithRecovery sets the recovery chain consulted before retry.
func WithRecovery(chain *resilience.RecoveryChain) EngineOption {
	return func(e *Engine) { e.recovery = chain }
}

// WithStrategies replaces the retry strategy registry.
func WithStrategies(set *resilience.StrategySet) EngineOption {
	return func(e *Engine) { e.strategies = set }
}

// WithGlobalMiddleware installs middleware applied to every tool.
func WithGlobalMiddleware(middleware ...Middleware) EngineOption {
	return func(e *Engine) { e.global = append(e.global, middleware...) }
}

// NewEngine builds an engine around the given registry.
func NewEngine(registry *Registry, cfg EngineConfig, opts ...EngineOption) *Engine {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.DefaultRetryStrategy == "" {
		cfg.DefaultRetryStrategy = resilience.StrategyDefault
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 10
	}

	e := &Engine{
		registry:   registry,
		strategies: resilience.NewStrategySet(),
		limiter:    resilience.NewRateLimiter(),
		cache:      NewResultCache(cfg.CacheSize),
		recovery:   resilience.NewRecoveryChain(),
		history:    NewHistory(cfg.HistorySize, cfg.HistoryWindow),
		emitter:    core.NoopEventEmitter{},
		logger:     slog.Default(),
		cfg:        cfg,
		sems:       make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breakers = resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		Timeout:          cfg.BreakerCooldown,
		OnStateChange:    e.onBreakerChange,
	})
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Recovery returns the engine's recovery chain for strategy registration.
func (e *Engine) Recovery() *resilience.RecoveryChain { return e.recovery }

// History returns the bounded execution history.
func (e *Engine) History() *History { return e.history }

// ResetBreaker manually closes the named tool's circuit breaker.
func (e *Engine) ResetBreaker(tool string) { e.breakers.Reset(tool) }

func (e *Engine) onBreakerChange(name string, from, to resilience.CircuitBreakerState) {
	ctx := context.Background()
	e.emitter.Emit(ctx, core.NewEvent(core.EventBreakerState, map[string]any{
		"from": string(from),
		"to":   string(to),
	}).WithTool(name))
	if e.metrics != nil {
		e.metrics.RecordBreakerState(ctx, name, string(to))
	}
}

// Execute runs the named tool through the full pipeline and always returns
// a result: execution either succeeds or fails with a classified error.
func (e *Engine) Execute(ctx context.Context, name string, params map[string]any, opts ...ExecOption) *ExecutionResult {
	ec := newExecutionContext(name, params)
	for _, opt := range opts {
		opt(ec)
	}

	reg, err := e.registry.Get(name)
	if err != nil {
		return e.finish(ctx, ec, failureResult(ec, errors.AsToolError(err)))
	}

	switch reg.Status() {
	case StatusInactive:
		te := errors.Newf(errors.CodeToolInactive, "tool %q is inactive", name).
			WithCategory(errors.CategoryValidation)
		return e.finish(ctx, ec, failureResult(ec, te))
	case StatusDeprecated:
		e.emitter.Emit(ctx, core.NewEvent(core.EventToolDeprecated, nil).WithTool(name))
	}

	ec.Timeout = reg.Config.Timeout
	if ec.Timeout == 0 {
		ec.Timeout = e.cfg.DefaultTimeout
	}

	// Validation: reported immediately, never retried.
	if vr := Validate(params, reg.Tool.Schema()); !vr.Valid() {
		te := errors.New(errors.CodeInvalidInput, "parameter validation failed", nil).
			WithContext("validation_errors", vr.Errors)
		return e.finish(ctx, ec, failureResult(ec, te))
	}

	// Permissions: the caller's set must cover the tool's requirements.
	if missing := missingPermissions(reg.Config.RequiredPermissions, ec.Permissions); len(missing) > 0 {
		e.emitter.Emit(ctx, core.NewEvent(core.EventPermissionDenied, map[string]any{
			"missing": missing,
		}).WithTool(name))
		te := errors.Newf(errors.CodePermissionDenied, "missing permissions for tool %q", name).
			WithContext("missing", missing)
		return e.finish(ctx, ec, failureResult(ec, te))
	}

	// Rate limit per (tool, caller).
	if rl := reg.Config.RateLimit; rl != nil {
		key := resilience.Key(name, ec.SessionID)
		if !e.limiter.CanExecute(key, *rl) {
			e.emitter.Emit(ctx, core.NewEvent(core.EventRateLimitExceeded, map[string]any{
				"caller": ec.SessionID,
			}).WithTool(name))
			if e.metrics != nil {
				e.metrics.RecordRateLimited(ctx, name)
			}
			return e.finish(ctx, ec, failureResult(ec, e.limiter.RejectionError(name, ec.SessionID, *rl)))
		}
		e.limiter.RecordExecution(key)
	}

	// Cache: only successful, cacheable results are stored.
	var cacheKey string
	if reg.Config.Cache != nil {
		cacheKey = ParamsKey(params)
		if data, ok := e.cache.Get(name, cacheKey); ok {
			e.emitter.Emit(ctx, core.NewEvent(core.EventCacheHit, nil).WithTool(name))
			if e.metrics != nil {
				e.metrics.RecordCache(ctx, name, true)
			}
			result := successResult(ec, data)
			result.CacheHit = true
			return e.finish(ctx, ec, result)
		}
		e.emitter.Emit(ctx, core.NewEvent(core.EventCacheMiss, nil).WithTool(name))
		if e.metrics != nil {
			e.metrics.RecordCache(ctx, name, false)
		}
	}

	// Per-tool concurrency cap.
	if release, err := e.acquire(ctx, name, reg.Config.MaxConcurrent); err != nil {
		return e.finish(ctx, ec, failureResult(ec, err))
	} else if release != nil {
		defer release()
	}

	strategy := e.strategies.Get(reg.Config.RetryStrategy)
	if reg.Config.RetryStrategy == "" {
		strategy = e.strategies.Get(e.cfg.DefaultRetryStrategy)
	}
	ec.MaxRetries = strategy.MaxAttempts - 1

	result := e.attemptLoop(ctx, reg, ec, strategy, cacheKey)
	reg.recordCall(result.Success)
	return e.finish(ctx, ec, result)
}

// attemptLoop runs the middleware-wrapped invocation under the retry
// strategy, consulting the circuit breaker before and the recovery chain
// after each attempt. Retries for one invocation are strictly sequential.
func (e *Engine) attemptLoop(ctx context.Context, reg *Registration, ec *ExecutionContext, strategy resilience.RetryStrategy, cacheKey string) *ExecutionResult {
	breaker := e.breakers.ForTool(ec.Tool)
	middleware := e.assembleMiddleware(reg)
	var attempts []resilience.Attempt

	coreCall := func(ctx context.Context) *ExecutionResult {
		data, err := reg.Tool.Execute(ctx, ec.Params)
		if err != nil {
			return failureResult(ec, errors.AsToolError(err))
		}
		return successResult(ec, data)
	}

	for attempt := 1; ; attempt++ {
		ec.RetryCount = attempt - 1

		// An open breaker short-circuits recovery and retry entirely.
		if err := breaker.Allow(); err != nil {
			return failureResult(ec, err)
		}

		record := resilience.Attempt{Number: attempt, At: time.Now()}
		result := Chain(middleware, ec, coreCall)(ctx)

		if result.Success {
			breaker.RecordSuccess()
			if reg.Config.Cache != nil && cacheKey != "" {
				e.cache.Put(ec.Tool, cacheKey, result.Data, reg.Config.Cache.TTL)
			}
			result.RetryCount = ec.RetryCount
			return result
		}

		breaker.RecordFailure()
		record.Error = result.Error.Error()
		attempts = append(attempts, record)

		// Recovery before retry: a substitute result ends the loop.
		meta := map[string]any{
			"tool":    ec.Tool,
			"params":  ec.Params,
			"attempt": attempt,
		}
		if data, ok := e.recovery.Handle(ctx, result.Error, meta); ok {
			recovered := successResult(ec, data)
			recovered.RetryCount = ec.RetryCount
			return recovered
		}

		cls := result.Error.Classification()
		if !strategy.ShouldRetry(cls, attempt) {
			result.Error.WithContext("attempts", attempts).
				WithContext("retry_strategy", strategy.Name)
			result.RetryCount = ec.RetryCount
			return result
		}

		delay := strategy.Delay(attempt)
		attempts[len(attempts)-1].Delay = delay
		select {
		case <-ctx.Done():
			te := errors.New(errors.CodeCanceled, "context canceled during retry", ctx.Err()).
				WithContext("attempts", attempts)
			return failureResult(ec, te)
		case <-time.After(delay):
		}
	}
}

// assembleMiddleware merges global, tool-scoped, and standard middleware.
func (e *Engine) assembleMiddleware(reg *Registration) []Middleware {
	middleware := make([]Middleware, 0, len(e.global)+len(reg.Middleware)+3)
	middleware = append(middleware, e.global...)
	middleware = append(middleware, reg.Middleware...)
	middleware = append(middleware,
		LoggingMiddleware(e.logger),
		TimeoutMiddleware(),
		ErrorEnrichmentMiddleware(),
	)
	return middleware
}

// acquire takes a slot on the tool's concurrency semaphore.
func (e *Engine) acquire(ctx context.Context, name string, max int) (func(), *errors.ToolError) {
	if max <= 0 {
		return nil, nil
	}

	e.semMu.Lock()
	sem, ok := e.sems[name]
	if !ok || cap(sem) != max {
		sem = make(chan struct{}, max)
		e.sems[name] = sem
	}
	e.semMu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, errors.New(errors.CodeResource, "concurrency limit wait canceled", ctx.Err()).
			WithContext("tool", name).
			WithContext("max_concurrent", max)
	}
}

// finish records the outcome into history, metrics, and events.
func (e *Engine) finish(ctx context.Context, ec *ExecutionContext, result *ExecutionResult) *ExecutionResult {
	record := HistoryRecord{
		ExecutionID: result.ExecutionID,
		Tool:        result.Tool,
		Success:     result.Success,
		Duration:    result.Duration,
		RetryCount:  result.RetryCount,
		Timestamp:   result.Timestamp,
	}

	if result.Success {
		e.emitter.Emit(ctx, core.NewEvent(core.EventToolExecuted, map[string]any{
			"execution_id": result.ExecutionID,
			"duration":     result.Duration.String(),
			"cache_hit":    result.CacheHit,
			"retry_count":  result.RetryCount,
		}).WithTool(result.Tool))
	} else {
		record.Category = result.Error.Category
		e.emitter.Emit(ctx, core.NewEvent(core.EventToolFailed, map[string]any{
			"execution_id": result.ExecutionID,
			"code":         result.Error.Code,
			"category":     string(result.Error.Category),
			"severity":     string(result.Error.Severity),
			"escalate":     result.Error.Escalate,
		}).WithTool(result.Tool))
	}

	if e.metrics != nil {
		e.metrics.RecordExecution(ctx, result.Tool, result.Success, result.Duration)
		if !result.Success {
			e.metrics.RecordFailure(ctx, result.Tool, string(result.Error.Category))
		}
	}

	e.history.Record(record)
	return result
}

// BatchCall is one member of a batch execution.
type BatchCall struct {
	Tool   string
	Params map[string]any
	Opts   []ExecOption
}

// ExecuteBatch runs the member invocations independently and in parallel,
// returning results in input order once every member has completed.
func (e *Engine) ExecuteBatch(ctx context.Context, calls []BatchCall) []*ExecutionResult {
	results := make([]*ExecutionResult, len(calls))

	p := pool.New().WithMaxGoroutines(e.cfg.BatchConcurrency)
	for i, call := range calls {
		i, call := i, call
		p.Go(func() {
			results[i] = e.Execute(ctx, call.Tool, call.Params, call.Opts...)
		})
	}
	p.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	e.emitter.Emit(ctx, core.NewEvent(core.EventBatchExecuted, map[string]any{
		"size":      len(calls),
		"succeeded": succeeded,
	}))

	return results
}

// Stats summarizes the engine's current state.
type Stats struct {
	Tools         int                                       `json:"tools"`
	HistoryLen    int                                       `json:"history_len"`
	ErrorRate     float64                                   `json:"error_rate"`
	CacheEntries  int                                       `json:"cache_entries"`
	BreakerStates map[string]resilience.CircuitBreakerState `json:"breaker_states"`
}

// Stats returns a snapshot of registry size, error rate over the retained
// history window, cache population, and breaker states.
func (e *Engine) Stats() Stats {
	return Stats{
		Tools:         e.registry.Len(),
		HistoryLen:    e.history.Len(),
		ErrorRate:     e.history.ErrorRate(""),
		CacheEntries:  e.cache.Len(),
		BreakerStates: e.breakers.States(),
	}
}

func missingPermissions(required, held []string) []string {
	if len(required) == 0 {
		return nil
	}
	holder := make(map[string]bool, len(held))
	for _, p := range held {
		holder[p] = true
	}
	var missing []string
	for _, p := range required {
		if !holder[p] {
			missing = append(missing, p)
		}
	}
	return missing
}
