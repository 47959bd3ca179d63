// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"testing"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

func TestRecoveryChainPriorityOrder(t *testing.T) {
	chain := NewRecoveryChain()
	var tried []string

	chain.Register(FuncRecovery("low", 1, func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
		tried = append(tried, "low")
		return "low-result", nil
	}))
	chain.Register(FuncRecovery("high", 10, func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
		tried = append(tried, "high")
		return nil, errors.New(errors.CodeInternal, "high failed", nil)
	}))

	err := errors.New(errors.CodeNetwork, "down", nil)
	result, ok := chain.Handle(context.Background(), err, nil)

	if !ok {
		t.Fatalf("expected recovery to succeed")
	}
	if result != "low-result" {
		t.Errorf("expected fallthrough to low strategy, got %v", result)
	}
	if len(tried) != 2 || tried[0] != "high" || tried[1] != "low" {
		t.Errorf("expected high tried before low, got %v", tried)
	}
}

func TestRecoveryChainFilters(t *testing.T) {
	chain := NewRecoveryChain()
	chain.Register(RecoveryStrategy{
		Name:       "network-only",
		Categories: []errors.Category{errors.CategoryNetwork},
		Recover: func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
			return "recovered", nil
		},
	})

	if _, ok := chain.Handle(context.Background(), errors.New(errors.CodeTimeout, "slow", nil), nil); ok {
		t.Errorf("timeout error must not match a network-only strategy")
	}
	if _, ok := chain.Handle(context.Background(), errors.New(errors.CodeNetwork, "down", nil), nil); !ok {
		t.Errorf("network error should match")
	}
}

func TestRecoveryChainCodeFilter(t *testing.T) {
	chain := NewRecoveryChain()
	chain.Register(RecoveryStrategy{
		Name:  "by-code",
		Codes: []string{errors.CodeRateLimit},
		Recover: func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
			return "recovered", nil
		},
	})

	if _, ok := chain.Handle(context.Background(), errors.New(errors.CodeRateLimit, "limited", nil), nil); !ok {
		t.Errorf("expected code match")
	}
	if _, ok := chain.Handle(context.Background(), errors.New(errors.CodeNetwork, "down", nil), nil); ok {
		t.Errorf("expected code mismatch to skip")
	}
}

func TestRecoveryChainPredicateVeto(t *testing.T) {
	chain := NewRecoveryChain()
	chain.Register(RecoveryStrategy{
		Name: "guarded",
		CanRecover: func(_ context.Context, _ *errors.ToolError, meta map[string]any) bool {
			return meta["allow"] == true
		},
		Recover: func(context.Context, *errors.ToolError, map[string]any) (interface{}, error) {
			return "recovered", nil
		},
	})

	err := errors.New(errors.CodeNetwork, "down", nil)
	if _, ok := chain.Handle(context.Background(), err, map[string]any{"allow": false}); ok {
		t.Errorf("expected predicate veto")
	}
	if _, ok := chain.Handle(context.Background(), err, map[string]any{"allow": true}); !ok {
		t.Errorf("expected predicate pass")
	}
}

func TestRecoveryChainSkipsUnrecoverable(t *testing.T) {
	chain := NewRecoveryChain()
	chain.Register(StaticRecovery("static", 1, "fallback"))

	unrecoverable := errors.New(errors.CodeBusinessLogic, "insufficient funds", nil)
	if _, ok := chain.Handle(context.Background(), unrecoverable, nil); ok {
		t.Errorf("business logic errors are not recoverable by default")
	}
}

func TestStaticRecovery(t *testing.T) {
	chain := NewRecoveryChain()
	chain.Register(StaticRecovery("degrade", 5, map[string]any{"degraded": true}, errors.CategoryNetwork))

	result, ok := chain.Handle(context.Background(), errors.New(errors.CodeNetwork, "down", nil), nil)
	if !ok {
		t.Fatalf("expected static recovery")
	}
	if m, _ := result.(map[string]any); m["degraded"] != true {
		t.Errorf("expected degraded payload, got %v", result)
	}
}
