// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a configuration file and republishes it through a
// ReloadableConfig when the file changes on disk. Listeners receive
// both the previous and the new configuration so they can react only
// to the sections that actually changed.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	lastMod   time.Time
	current   *ReloadableConfig
	listeners []func(old, updated *Config)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval for file changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads the configuration at path and returns a watcher that
// keeps it current.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		interval: 1 * time.Second,
		logger:   slog.Default(),
		current:  NewReloadableConfig(cfg),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	}
	return w, nil
}

// Reloadable returns the live configuration handle. Components holding
// it observe reloads without further wiring.
func (w *Watcher) Reloadable() *ReloadableConfig {
	return w.current
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	return w.current.Get()
}

// OnChange registers a callback invoked with the previous and the new
// configuration after each successful reload.
func (w *Watcher) OnChange(fn func(old, updated *Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins polling for file changes. It runs until Stop is called
// or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.poll(ctx)
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.reload()
			}
		}
	}
}

// changed stats the file and records the new mod time when it moved
// forward. A missing file is not a change; the last good config stays
// in effect.
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.lastMod) {
		return false
	}
	w.lastMod = info.ModTime()
	return true
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config",
			"path", w.path, "error", err)
		return
	}

	old := w.current.Get()
	w.current.Update(cfg)

	w.mu.Lock()
	listeners := make([]func(old, updated *Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	for _, fn := range listeners {
		fn(old, cfg)
	}
}

// ReloadableConfig is a thread-safe configuration handle that can be
// atomically swapped on reload.
type ReloadableConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewReloadableConfig creates a new reloadable config wrapper.
func NewReloadableConfig(cfg *Config) *ReloadableConfig {
	return &ReloadableConfig{config: cfg}
}

// Get returns the current configuration.
func (r *ReloadableConfig) Get() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Update atomically replaces the configuration.
func (r *ReloadableConfig) Update(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

// Engine returns the engine configuration.
func (r *ReloadableConfig) Engine() EngineConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Engine
}

// Agents returns the agent fleet configuration.
func (r *ReloadableConfig) Agents() AgentsConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Agents
}

// Telemetry returns the telemetry configuration.
func (r *ReloadableConfig) Telemetry() TelemetryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Telemetry
}

// Log returns the log configuration.
func (r *ReloadableConfig) Log() LogConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Log
}
