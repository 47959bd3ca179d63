// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"fmt"
	"testing"
	"time"
)

func record(tool string, success bool, at time.Time) HistoryRecord {
	return HistoryRecord{
		ExecutionID: fmt.Sprintf("%s-%d", tool, at.UnixNano()),
		Tool:        tool,
		Success:     success,
		Duration:    time.Millisecond,
		Timestamp:   at,
	}
}

func TestHistoryBoundedByMax(t *testing.T) {
	h := NewHistory(3, time.Hour)
	now := time.Now()

	for i := 0; i < 5; i++ {
		h.Record(record("t", true, now.Add(time.Duration(i)*time.Millisecond)))
	}

	if h.Len() != 3 {
		t.Errorf("expected 3 retained records, got %d", h.Len())
	}
}

func TestHistoryEvictsOutsideWindow(t *testing.T) {
	h := NewHistory(100, 50*time.Millisecond)
	now := time.Now()

	h.Record(record("t", true, now.Add(-time.Second))) // already stale
	h.Record(record("t", true, now))

	if h.Len() != 1 {
		t.Errorf("expected stale record evicted, got %d", h.Len())
	}
}

func TestHistoryRecent(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()

	for i := 0; i < 5; i++ {
		h.Record(record(fmt.Sprintf("t%d", i), true, now.Add(time.Duration(i)*time.Millisecond)))
	}

	recent := h.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	// Newest last
	if recent[1].Tool != "t4" || recent[0].Tool != "t3" {
		t.Errorf("expected [t3 t4], got [%s %s]", recent[0].Tool, recent[1].Tool)
	}
}

func TestHistoryErrorRate(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()

	h.Record(record("a", true, now))
	h.Record(record("a", false, now))
	h.Record(record("b", true, now))
	h.Record(record("b", true, now))

	if got := h.ErrorRate("a"); got != 0.5 {
		t.Errorf("expected error rate 0.5 for a, got %f", got)
	}
	if got := h.ErrorRate("b"); got != 0 {
		t.Errorf("expected error rate 0 for b, got %f", got)
	}
	if got := h.ErrorRate(""); got != 0.25 {
		t.Errorf("expected aggregate error rate 0.25, got %f", got)
	}
	if got := h.ErrorRate("unknown"); got != 0 {
		t.Errorf("expected 0 for unknown tool, got %f", got)
	}
}
