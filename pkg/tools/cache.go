// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache stores successful tool results keyed by tool name plus a
// hash of the parameters. Each tool gets its own TTL-evicting LRU sized by
// its cache policy, so entries are purged once their TTL elapses.
type ResultCache struct {
	size   int
	caches map[string]*expirable.LRU[string, any]
	mu     sync.Mutex
}

// NewResultCache creates a cache holding up to size entries per tool.
func NewResultCache(size int) *ResultCache {
	if size <= 0 {
		size = 128
	}
	return &ResultCache{
		size:   size,
		caches: make(map[string]*expirable.LRU[string, any]),
	}
}

// ParamsKey produces a stable hash for a parameter set. Map keys are
// sorted by the JSON encoder, so identical parameters hash identically.
func ParamsKey(params map[string]any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", params))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(encoded))
}

// Get returns the cached result for (tool, key) if present and unexpired.
func (rc *ResultCache) Get(tool, key string) (any, bool) {
	rc.mu.Lock()
	lru, ok := rc.caches[tool]
	rc.mu.Unlock()
	if !ok {
		return nil, false
	}
	return lru.Get(key)
}

// Put stores a successful result under (tool, key) with the given TTL.
// The tool's LRU is created on first use with that TTL.
func (rc *ResultCache) Put(tool, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	rc.mu.Lock()
	lru, ok := rc.caches[tool]
	if !ok {
		lru = expirable.NewLRU[string, any](rc.size, nil, ttl)
		rc.caches[tool] = lru
	}
	rc.mu.Unlock()

	lru.Add(key, value)
}

// Purge drops every entry for the named tool.
func (rc *ResultCache) Purge(tool string) {
	rc.mu.Lock()
	lru, ok := rc.caches[tool]
	delete(rc.caches, tool)
	rc.mu.Unlock()
	if ok {
		lru.Purge()
	}
}

// Len returns the number of live entries across all tools.
func (rc *ResultCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	total := 0
	for _, lru := range rc.caches {
		total += lru.Len()
	}
	return total
}
