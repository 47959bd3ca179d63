// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angleito/seiron-runtime/pkg/core"
	"github.com/angleito/seiron-runtime/pkg/errors"
	"github.com/angleito/seiron-runtime/pkg/telemetry"
)

// Balancing disciplines for Select.
const (
	BalanceRoundRobin  = "round_robin"
	BalanceLeastActive = "least_active"
	BalanceRandom      = "random"
)

// Health classification thresholds. An agent whose probe fails or whose
// error rate exceeds unhealthyErrorRate is unhealthy; one above
// degradedErrorRate or slower than degradedResponseTime is degraded.
const (
	unhealthyErrorRate   = 0.5
	degradedErrorRate    = 0.1
	degradedResponseTime = 2 * time.Second
	probeTimeout         = 5 * time.Second
)

// RegistryConfig controls fleet limits, the health loop, and selection.
type RegistryConfig struct {
	MaxAgents           int
	HealthCheckInterval time.Duration
	AutoRestart         bool
	Balancing           string
}

// DefaultRegistryConfig returns the fleet defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxAgents:           10,
		HealthCheckInterval: 30 * time.Second,
		AutoRestart:         true,
		Balancing:           BalanceRoundRobin,
	}
}

// entry pairs an agent with the registry-owned state for it. The health
// snapshot is guarded by mu; the request counter is atomic so selection
// does not contend with the health loop.
type entry struct {
	agent        Agent
	registeredAt time.Time

	mu     sync.RWMutex
	health core.HealthResult

	requests atomic.Int64
}

func (e *entry) setHealth(h core.HealthResult) {
	e.mu.Lock()
	e.health = h
	e.mu.Unlock()
}

func (e *entry) Health() core.HealthResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health
}

// Registry manages the agent fleet.
type Registry struct {
	cfg     RegistryConfig
	emitter core.EventEmitter
	metrics *telemetry.RuntimeMetrics
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // registration order, drives round-robin

	rr atomic.Uint64

	loopOnce sync.Once
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithEmitter sets the event emitter.
func WithEmitter(emitter core.EventEmitter) RegistryOption {
	return func(r *Registry) {
		if emitter != nil {
			r.emitter = emitter
		}
	}
}

// WithMetrics sets the runtime metrics recorder.
func WithMetrics(metrics *telemetry.RuntimeMetrics) RegistryOption {
	return func(r *Registry) { r.metrics = metrics }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an agent registry.
func NewRegistry(cfg RegistryConfig, opts ...RegistryOption) *Registry {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = DefaultRegistryConfig().MaxAgents
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultRegistryConfig().HealthCheckInterval
	}
	if cfg.Balancing == "" {
		cfg.Balancing = BalanceRoundRobin
	}

	r := &Registry{
		cfg:     cfg,
		emitter: core.NoopEventEmitter{},
		logger:  slog.Default(),
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an agent to the fleet and starts it. It fails when the
// id is already taken or the fleet is full.
func (r *Registry) Register(ctx context.Context, agent Agent) *errors.ToolError {
	r.mu.Lock()
	if _, exists := r.entries[agent.ID()]; exists {
		r.mu.Unlock()
		return errors.New(errors.CodeAlreadyRegistered, "agent already registered: "+agent.ID(), nil).
			WithContext("agent", agent.ID())
	}
	if len(r.entries) >= r.cfg.MaxAgents {
		r.mu.Unlock()
		return errors.New(errors.CodeMaxAgents, "maximum number of agents reached", nil).
			WithContext("agent", agent.ID()).
			WithContext("max_agents", r.cfg.MaxAgents)
	}

	e := &entry{
		agent:        agent,
		registeredAt: time.Now(),
		health: core.HealthResult{
			Status:    core.HealthHealthy,
			Component: "agent:" + agent.ID(),
			Message:   "registered, awaiting first health check",
			LastCheck: time.Now(),
		},
	}
	r.entries[agent.ID()] = e
	r.order = append(r.order, agent.ID())
	r.mu.Unlock()

	if err := agent.Start(ctx); err != nil {
		r.removeEntry(agent.ID())
		return errors.New(errors.CodeInternal, "agent failed to start", err).
			WithContext("agent", agent.ID())
	}

	r.emitter.Emit(ctx, core.NewEvent(core.EventAgentRegistered, map[string]any{
		"capabilities": agent.Capabilities(),
	}).WithAgent(agent.ID()))
	return nil
}

// Unregister stops an agent and removes it from the fleet.
func (r *Registry) Unregister(ctx context.Context, id string) *errors.ToolError {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()
	if !exists {
		return errors.New(errors.CodeNotFound, "agent not found: "+id, nil).
			WithContext("agent", id)
	}

	if err := e.agent.Stop(ctx); err != nil {
		r.logger.Warn("agent stop failed during unregister", "agent", id, "error", err)
	}
	r.removeEntry(id)

	r.emitter.Emit(ctx, core.NewEvent(core.EventAgentUnregistered, nil).WithAgent(id))
	return nil
}

func (r *Registry) removeEntry(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns an agent by id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// List returns all registered agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, r.entries[id].agent)
	}
	return agents
}

// Len returns the fleet size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// The registry reports fleet health as a single component.
var _ core.HealthChecker = (*Registry)(nil)

// Check aggregates the latest per-agent snapshots into one fleet-level
// result. The fleet is only as healthy as its worst member; an empty
// fleet is unhealthy.
func (r *Registry) Check(_ context.Context) core.HealthResult {
	r.mu.RLock()
	snapshots := make([]core.HealthResult, 0, len(r.order))
	for _, id := range r.order {
		snapshots = append(snapshots, r.entries[id].Health())
	}
	r.mu.RUnlock()

	result := core.HealthResult{
		Component: "agents",
		LastCheck: time.Now(),
	}
	if len(snapshots) == 0 {
		result.Status = core.HealthUnhealthy
		result.Message = "no agents registered"
		return result
	}

	statuses := make([]core.HealthStatus, len(snapshots))
	healthy := 0
	var errorRateSum float64
	for i, s := range snapshots {
		statuses[i] = s.Status
		errorRateSum += s.ErrorRate
		if s.Status == core.HealthHealthy {
			healthy++
		}
	}
	result.Status = core.WorstStatus(statuses...)
	result.ErrorRate = errorRateSum / float64(len(snapshots))
	result.Message = fmt.Sprintf("%d/%d agents healthy", healthy, len(snapshots))
	return result
}

// Health returns the latest health snapshot for an agent.
func (r *Registry) Health(id string) (core.HealthResult, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return core.HealthResult{}, false
	}
	return e.Health(), true
}

// Requests returns the running request counter for an agent.
func (r *Registry) Requests(id string) int64 {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.requests.Load()
}

// Select picks a healthy agent advertising the given capability using
// the configured balancing discipline. An empty capability matches any
// agent. Round-robin and least-active increment the chosen agent's
// request counter.
func (r *Registry) Select(capability string) (Agent, *errors.ToolError) {
	r.mu.RLock()
	candidates := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		if capability != "" && !hasCapability(e.agent, capability) {
			continue
		}
		if e.Health().Status != core.HealthHealthy {
			continue
		}
		candidates = append(candidates, e)
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, errors.New(errors.CodeNotFound, "no healthy agent available", nil).
			WithContext("capability", capability)
	}

	var chosen *entry
	switch r.cfg.Balancing {
	case BalanceLeastActive:
		chosen = candidates[0]
		for _, e := range candidates[1:] {
			if e.requests.Load() < chosen.requests.Load() {
				chosen = e
			}
		}
		chosen.requests.Add(1)
	case BalanceRandom:
		chosen = candidates[rand.Intn(len(candidates))]
	default: // round robin
		idx := (r.rr.Add(1) - 1) % uint64(len(candidates))
		chosen = candidates[idx]
		chosen.requests.Add(1)
	}
	return chosen.agent, nil
}

func hasCapability(agent Agent, capability string) bool {
	for _, c := range agent.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// Start launches the background health loop. It runs until Stop is
// called or the context is cancelled.
func (r *Registry) Start(ctx context.Context) {
	r.loopOnce.Do(func() {
		go r.healthLoop(ctx)
	})
}

// Stop terminates the health loop and stops every agent.
func (r *Registry) Stop(ctx context.Context) {
	r.loopOnce.Do(func() {
		// Loop never started; keep Stop safe to call.
		close(r.doneCh)
	})
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh

	for _, agent := range r.List() {
		if err := agent.Stop(ctx); err != nil {
			r.logger.Warn("agent stop failed", "agent", agent.ID(), "error", err)
		}
	}
}

func (r *Registry) healthLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.CheckAll(ctx)
		}
	}
}

// CheckAll probes every agent once, classifies its health, and restarts
// unhealthy agents when auto-restart is enabled. The health loop calls
// this on every tick; tests can call it directly.
func (r *Registry) CheckAll(ctx context.Context) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.RUnlock()

	for _, e := range entries {
		result := r.checkAgent(ctx, e)
		e.setHealth(result)

		r.metrics.RecordAgentHealth(ctx, e.agent.ID(), string(result.Status))
		r.emitter.Emit(ctx, core.NewEvent(core.EventHealthChecked, map[string]any{
			"status":     string(result.Status),
			"error_rate": result.ErrorRate,
		}).WithAgent(e.agent.ID()))

		if result.Status == core.HealthUnhealthy && r.cfg.AutoRestart && e.agent.State() != StateActive {
			r.restart(ctx, e.agent)
		}
	}
}

func (r *Registry) checkAgent(ctx context.Context, e *entry) core.HealthResult {
	agent := e.agent
	result := core.HealthResult{
		Component: "agent:" + agent.ID(),
		LastCheck: time.Now(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	probeErr := agent.Probe(probeCtx)
	result.ResponseTime = time.Since(start)

	m := agent.Metrics()
	result.ErrorRate = m.ErrorRate()
	result.Uptime = m.Uptime
	if m.AvgResponseTime > 0 {
		result.ResponseTime = m.AvgResponseTime
	}

	switch {
	case probeErr != nil:
		result.Status = core.HealthUnhealthy
		result.Message = "probe failed: " + probeErr.Error()
		result.Error = probeErr
	case result.ErrorRate > unhealthyErrorRate:
		result.Status = core.HealthUnhealthy
		result.Message = "error rate above unhealthy threshold"
	case result.ErrorRate > degradedErrorRate:
		result.Status = core.HealthDegraded
		result.Message = "error rate above degraded threshold"
	case result.ResponseTime > degradedResponseTime:
		result.Status = core.HealthDegraded
		result.Message = "response time above degraded threshold"
	default:
		result.Status = core.HealthHealthy
		result.Message = "agent operational"
	}
	return result
}

func (r *Registry) restart(ctx context.Context, agent Agent) {
	r.logger.Info("restarting unhealthy agent", "agent", agent.ID())

	if err := agent.Stop(ctx); err != nil {
		r.logger.Warn("agent stop failed during restart", "agent", agent.ID(), "error", err)
	}
	if err := agent.Start(ctx); err != nil {
		r.logger.Error("agent restart failed", "agent", agent.ID(), "error", err)
		return
	}
	r.emitter.Emit(ctx, core.NewEvent(core.EventAgentRestarted, nil).WithAgent(agent.ID()))
}
