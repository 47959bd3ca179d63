// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsChanges(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `engine:
  breaker_threshold: 5
log:
  level: info
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	watcher, err := NewWatcher(configPath, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	type change struct{ old, updated *Config }
	changes := make(chan change, 1)
	watcher.OnChange(func(old, updated *Config) {
		changes <- change{old, updated}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher.Start(ctx)
	defer watcher.Stop()

	cfg := watcher.Config()
	if cfg.Engine.BreakerThreshold != 5 {
		t.Errorf("expected breaker threshold 5, got %d", cfg.Engine.BreakerThreshold)
	}

	// Let the first poll tick pass before touching the file.
	time.Sleep(100 * time.Millisecond)

	updated := `engine:
  breaker_threshold: 3
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to write updated config: %v", err)
	}

	select {
	case ch := <-changes:
		if ch.old.Log.Level != "info" {
			t.Errorf("expected old level info, got %q", ch.old.Log.Level)
		}
		if ch.updated.Engine.BreakerThreshold != 3 {
			t.Errorf("expected breaker threshold 3, got %d", ch.updated.Engine.BreakerThreshold)
		}
		if ch.updated.Log.Level != "debug" {
			t.Errorf("expected new level debug, got %q", ch.updated.Log.Level)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("timeout waiting for config change notification")
	}

	// The reloadable handle observes the swap without re-registration.
	if watcher.Reloadable().Engine().BreakerThreshold != 3 {
		t.Errorf("expected reloadable handle to see threshold 3, got %d",
			watcher.Reloadable().Engine().BreakerThreshold)
	}
}

func TestWatcherKeepsConfigOnMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("engine:\n  breaker_threshold: 7\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewWatcher(configPath, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	if err := os.Remove(configPath); err != nil {
		t.Fatalf("failed to remove config: %v", err)
	}

	ctx := context.Background()
	watcher.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	watcher.Stop()

	if watcher.Config().Engine.BreakerThreshold != 7 {
		t.Errorf("expected last good config to survive, got threshold %d",
			watcher.Config().Engine.BreakerThreshold)
	}
}

func TestWatcherStops(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(`log: {}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewWatcher(configPath, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx := context.Background()
	watcher.Start(ctx)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Error("watcher.Stop() did not complete in time")
	}
}

func TestReloadableConfig(t *testing.T) {
	cfg1 := &Config{
		Log: LogConfig{Level: "info"},
	}
	cfg2 := &Config{
		Log: LogConfig{Level: "debug"},
	}

	rc := NewReloadableConfig(cfg1)

	if rc.Log().Level != "info" {
		t.Errorf("expected info, got %q", rc.Log().Level)
	}

	rc.Update(cfg2)

	if rc.Log().Level != "debug" {
		t.Errorf("expected debug, got %q", rc.Log().Level)
	}
	if rc.Get().Log.Level != "debug" {
		t.Errorf("expected debug from Get(), got %q", rc.Get().Log.Level)
	}
}
