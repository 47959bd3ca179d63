// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"testing"
	"time"
)

func TestParamsKeyStable(t *testing.T) {
	a := ParamsKey(map[string]any{"b": 2, "a": 1})
	b := ParamsKey(map[string]any{"a": 1, "b": 2})
	if a != b {
		t.Errorf("identical params must hash identically: %s vs %s", a, b)
	}

	c := ParamsKey(map[string]any{"a": 1, "b": 3})
	if a == c {
		t.Error("different params must hash differently")
	}
}

func TestCachePutGet(t *testing.T) {
	cache := NewResultCache(8)

	cache.Put("search", "k1", "result", time.Minute)
	got, ok := cache.Get("search", "k1")
	if !ok || got != "result" {
		t.Errorf("expected cached result, got %v/%v", got, ok)
	}

	if _, ok := cache.Get("search", "k2"); ok {
		t.Error("expected miss for unknown key")
	}
	if _, ok := cache.Get("other", "k1"); ok {
		t.Error("expected miss for unknown tool")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewResultCache(8)

	cache.Put("search", "k1", "result", 30*time.Millisecond)
	if _, ok := cache.Get("search", "k1"); !ok {
		t.Fatal("expected entry before expiry")
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := cache.Get("search", "k1"); ok {
		t.Error("expected entry purged after TTL")
	}
}

func TestCacheZeroTTLDisabled(t *testing.T) {
	cache := NewResultCache(8)

	cache.Put("search", "k1", "result", 0)
	if _, ok := cache.Get("search", "k1"); ok {
		t.Error("zero TTL must not cache")
	}
}

func TestCachePurge(t *testing.T) {
	cache := NewResultCache(8)

	cache.Put("search", "k1", "r1", time.Minute)
	cache.Put("search", "k2", "r2", time.Minute)
	cache.Put("calc", "k1", "r3", time.Minute)

	cache.Purge("search")
	if _, ok := cache.Get("search", "k1"); ok {
		t.Error("expected purged tool entries gone")
	}
	if _, ok := cache.Get("calc", "k1"); !ok {
		t.Error("purge must not affect other tools")
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", cache.Len())
	}
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	cache := NewResultCache(2)

	cache.Put("search", "k1", "r1", time.Minute)
	cache.Put("search", "k2", "r2", time.Minute)
	cache.Put("search", "k3", "r3", time.Minute)

	if cache.Len() != 2 {
		t.Errorf("expected capacity bound of 2, got %d", cache.Len())
	}
	// Oldest entry was evicted
	if _, ok := cache.Get("search", "k1"); ok {
		t.Error("expected LRU eviction of the oldest entry")
	}
}
