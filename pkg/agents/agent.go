// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

// Package agents manages a fleet of named agents with periodic health
// checks and capability-based, load-balanced selection.
package agents

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the lifecycle state of an agent.
type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StateStopped State = "stopped"
	StateErrored State = "errored"
)

// Metrics holds the counters used by health classification.
type Metrics struct {
	ErrorCount      int64
	ActionsExecuted int64
	AvgResponseTime time.Duration
	Uptime          time.Duration
}

// ErrorRate returns the fraction of executed actions that failed.
func (m Metrics) ErrorRate() float64 {
	if m.ActionsExecuted == 0 {
		return 0
	}
	return float64(m.ErrorCount) / float64(m.ActionsExecuted)
}

// Agent is any value exposing a capability set, a lifecycle, and the
// metrics health classification consumes. Adapter-specific behavior is
// provided through registered tools, not through embedding.
type Agent interface {
	ID() string
	Name() string
	Capabilities() []string

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() State

	Metrics() Metrics

	// Probe is a lightweight liveness check invoked by the registry's
	// health loop. It should return quickly; a non-nil error marks the
	// agent unhealthy regardless of its metrics.
	Probe(ctx context.Context) error
}

// BaseAgent is a minimal Agent implementation that tracks lifecycle
// state and action metrics. Embedders or tool adapters update metrics
// through RecordAction.
type BaseAgent struct {
	id           string
	name         string
	capabilities []string

	mu        sync.RWMutex
	state     State
	startedAt time.Time

	errorCount atomic.Int64
	actions    atomic.Int64
	totalNanos atomic.Int64
}

// NewBaseAgent creates an idle agent with the given identity.
func NewBaseAgent(id, name string, capabilities ...string) *BaseAgent {
	return &BaseAgent{
		id:           id,
		name:         name,
		capabilities: capabilities,
		state:        StateIdle,
	}
}

func (a *BaseAgent) ID() string   { return a.id }
func (a *BaseAgent) Name() string { return a.name }

func (a *BaseAgent) Capabilities() []string {
	caps := make([]string, len(a.capabilities))
	copy(caps, a.capabilities)
	return caps
}

// Start marks the agent active and resets its uptime clock.
func (a *BaseAgent) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateActive
	a.startedAt = time.Now()
	return nil
}

// Stop marks the agent stopped.
func (a *BaseAgent) Stop(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateStopped
	return nil
}

// State returns the current lifecycle state.
func (a *BaseAgent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Probe reports liveness based on lifecycle state.
func (a *BaseAgent) Probe(_ context.Context) error {
	return nil
}

// RecordAction feeds one executed action into the agent's metrics.
func (a *BaseAgent) RecordAction(duration time.Duration, err error) {
	a.actions.Add(1)
	a.totalNanos.Add(int64(duration))
	if err != nil {
		a.errorCount.Add(1)
	}
}

// Metrics returns a snapshot of the agent's counters.
func (a *BaseAgent) Metrics() Metrics {
	a.mu.RLock()
	startedAt := a.startedAt
	state := a.state
	a.mu.RUnlock()

	actions := a.actions.Load()
	m := Metrics{
		ErrorCount:      a.errorCount.Load(),
		ActionsExecuted: actions,
	}
	if actions > 0 {
		m.AvgResponseTime = time.Duration(a.totalNanos.Load() / actions)
	}
	if state == StateActive && !startedAt.IsZero() {
		m.Uptime = time.Since(startedAt)
	}
	return m
}
