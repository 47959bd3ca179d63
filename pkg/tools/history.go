// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"sync"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// HistoryRecord is the retained summary of one completed execution.
type HistoryRecord struct {
	ExecutionID string          `json:"execution_id"`
	Tool        string          `json:"tool"`
	Success     bool            `json:"success"`
	Duration    time.Duration   `json:"duration"`
	Category    errors.Category `json:"category,omitempty"`
	RetryCount  int             `json:"retry_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

// History is a bounded, time-windowed record of past executions used for
// statistics. Full execution contexts are discarded after the call.
type History struct {
	records []HistoryRecord
	max     int
	window  time.Duration
	mu      sync.Mutex
}

// NewHistory creates a history bounded by max records and a time window.
func NewHistory(max int, window time.Duration) *History {
	if max <= 0 {
		max = 1000
	}
	if window <= 0 {
		window = time.Hour
	}
	return &History{max: max, window: window}
}

// Record appends a summary, evicting records outside the bounds.
func (h *History) Record(record HistoryRecord) {
	h.mu.Lock()
	h.records = append(h.records, record)
	h.evict()
	h.mu.Unlock()
}

// evict drops records outside the window or beyond max. Must hold h.mu.
func (h *History) evict() {
	cutoff := time.Now().Add(-h.window)
	start := 0
	for start < len(h.records) && h.records[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(h.records) - start - h.max; over > 0 {
		start += over
	}
	if start > 0 {
		h.records = append(h.records[:0:0], h.records[start:]...)
	}
}

// Recent returns up to n of the most recent records, newest last.
func (h *History) Recent(n int) []HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.evict()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]HistoryRecord, n)
	copy(out, h.records[len(h.records)-n:])
	return out
}

// ErrorRate returns the in-window failure fraction for a tool; an empty
// tool name aggregates across all tools.
func (h *History) ErrorRate(tool string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.evict()
	total, failed := 0, 0
	for _, r := range h.records {
		if tool != "" && r.Tool != tool {
			continue
		}
		total++
		if !r.Success {
			failed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evict()
	return len(h.records)
}
