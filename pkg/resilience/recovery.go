// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sort"
	"sync"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// RecoveryStrategy is an alternate path tried instead of surfacing an
// error. Strategies apply to specific error codes or categories, may veto
// themselves with CanRecover, and are tried in descending priority order.
type RecoveryStrategy struct {
	// Name identifies the strategy in logs and events.
	Name string

	// Codes limits applicability to these error codes. Empty matches any.
	Codes []string

	// Categories limits applicability to these categories. Empty matches any.
	Categories []errors.Category

	// Priority orders strategies; higher is tried first.
	Priority int

	// CanRecover, when set, is an extra applicability predicate given the
	// error and invocation metadata.
	CanRecover func(ctx context.Context, err *errors.ToolError, meta map[string]any) bool

	// Recover attempts the alternate path, returning a substitute result
	// or a (possibly different) failure.
	Recover func(ctx context.Context, err *errors.ToolError, meta map[string]any) (interface{}, error)
}

// applies reports whether the strategy matches the error's code/category.
func (rs RecoveryStrategy) applies(err *errors.ToolError) bool {
	if len(rs.Codes) > 0 {
		found := false
		for _, code := range rs.Codes {
			if code == err.Code {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(rs.Categories) > 0 {
		found := false
		for _, cat := range rs.Categories {
			if cat == err.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RecoveryChain holds an ordered set of recovery strategies.
type RecoveryChain struct {
	strategies []RecoveryStrategy
	mu         sync.RWMutex
}

// NewRecoveryChain creates an empty chain.
func NewRecoveryChain() *RecoveryChain {
	return &RecoveryChain{}
}

// Register adds a strategy to the chain.
func (rc *RecoveryChain) Register(s RecoveryStrategy) {
	rc.mu.Lock()
	rc.strategies = append(rc.strategies, s)
	sort.SliceStable(rc.strategies, func(i, j int) bool {
		return rc.strategies[i].Priority > rc.strategies[j].Priority
	})
	rc.mu.Unlock()
}

// Handle tries each applicable strategy in priority order until one
// succeeds. The second return reports whether recovery produced a result;
// when false the caller falls through to retry or surfacing.
func (rc *RecoveryChain) Handle(ctx context.Context, err *errors.ToolError, meta map[string]any) (interface{}, bool) {
	if err == nil || !err.Recoverable {
		return nil, false
	}

	rc.mu.RLock()
	candidates := make([]RecoveryStrategy, len(rc.strategies))
	copy(candidates, rc.strategies)
	rc.mu.RUnlock()

	for _, s := range candidates {
		if !s.applies(err) {
			continue
		}
		if s.CanRecover != nil && !s.CanRecover(ctx, err, meta) {
			continue
		}
		if s.Recover == nil {
			continue
		}
		if result, rerr := s.Recover(ctx, err, meta); rerr == nil {
			return result, true
		}
	}

	return nil, false
}

// StaticRecovery returns a strategy that substitutes a fixed value for
// matching errors. Useful for degraded defaults.
func StaticRecovery(name string, priority int, value interface{}, categories ...errors.Category) RecoveryStrategy {
	return RecoveryStrategy{
		Name:       name,
		Priority:   priority,
		Categories: categories,
		Recover: func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
			return value, nil
		},
	}
}

// FuncRecovery returns a strategy backed by a plain function.
func FuncRecovery(name string, priority int, fn func(ctx context.Context, err *errors.ToolError, meta map[string]any) (interface{}, error)) RecoveryStrategy {
	return RecoveryStrategy{
		Name:     name,
		Priority: priority,
		Recover:  fn,
	}
}
