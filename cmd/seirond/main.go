// Copyright 2026 © The Seiron Authors
// SPDX-License-Identifier: Apache-2.0

// Command seirond runs the resilient tool-execution runtime as a daemon:
// it loads configuration, wires telemetry, registers the sample tool set
// and agents, and optionally serves the registry over MCP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angleito/seiron-runtime/pkg/agents"
	"github.com/angleito/seiron-runtime/pkg/config"
	"github.com/angleito/seiron-runtime/pkg/core"
	seironmcp "github.com/angleito/seiron-runtime/pkg/mcp"
	"github.com/angleito/seiron-runtime/pkg/resilience"
	"github.com/angleito/seiron-runtime/pkg/telemetry"
	"github.com/angleito/seiron-runtime/pkg/tools"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml)")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	var (
		cfg     *config.Config
		watcher *config.Watcher
		err     error
	)
	if *configPath != "" {
		// Watch the config file so log level changes apply without a
		// restart.
		watcher, err = config.NewWatcher(*configPath)
		if watcher != nil {
			cfg = watcher.Config()
		}
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "seirond: failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		rendered, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "seirond: failed to render config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(rendered)
		return
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitWithConfig("seirond", version, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher != nil {
		watcher.OnChange(func(old, updated *config.Config) {
			if old.Log.Level != updated.Log.Level {
				telemetry.SetLogLevel(updated.Log.Level)
				logger.Info("log level changed", "from", old.Log.Level, "to", updated.Log.Level)
			}
			if old.Engine != updated.Engine || old.Agents != updated.Agents {
				logger.Warn("engine or agent settings changed on disk, restart to apply")
			}
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("seirond exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics, err := telemetry.NewRuntimeMetrics()
	if err != nil {
		return fmt.Errorf("metrics setup: %w", err)
	}
	emitter := core.SlogEventEmitter{Logger: logger}

	registry := tools.NewRegistry(tools.WithRegistryEmitter(emitter))
	engine := tools.NewEngine(registry, tools.EngineConfig{
		DefaultTimeout:       cfg.Engine.DefaultTimeout,
		DefaultRetryStrategy: cfg.Engine.DefaultRetryStrategy,
		BreakerThreshold:     cfg.Engine.BreakerThreshold,
		BreakerCooldown:      cfg.Engine.BreakerCooldown,
		HistorySize:          cfg.Engine.HistorySize,
		HistoryWindow:        cfg.Engine.HistoryWindow,
		CacheSize:            cfg.Engine.CacheSize,
		BatchConcurrency:     cfg.Engine.BatchConcurrency,
	},
		tools.WithEmitter(emitter),
		tools.WithMetrics(metrics),
		tools.WithLogger(logger),
	)

	if err := registerSampleTools(engine); err != nil {
		return fmt.Errorf("tool registration: %w", err)
	}

	fleet := agents.NewRegistry(agents.RegistryConfig{
		MaxAgents:           cfg.Agents.MaxAgents,
		HealthCheckInterval: cfg.Agents.HealthCheckInterval,
		AutoRestart:         cfg.Agents.AutoRestart,
		Balancing:           cfg.Agents.Balancing,
	},
		agents.WithEmitter(emitter),
		agents.WithMetrics(metrics),
		agents.WithLogger(logger),
	)
	for _, agent := range sampleAgents() {
		if err := fleet.Register(ctx, agent); err != nil {
			return fmt.Errorf("agent registration: %w", err)
		}
	}
	fleet.Start(ctx)
	defer fleet.Stop(context.Background())

	logger.Info("seirond started",
		"version", version,
		"tools", engine.Registry().Len(),
		"agents", fleet.Len(),
		"mcp", cfg.MCP.Enabled,
	)

	if cfg.MCP.Enabled {
		srv := seironmcp.NewServer(cfg.MCP.Name, version, engine)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ServeStdio() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	stats := engine.Stats()
	fleetHealth := fleet.Check(context.Background())
	logger.Info("seirond stopping",
		"executions", stats.HistoryLen,
		"error_rate", stats.ErrorRate,
		"cache_entries", stats.CacheEntries,
		"fleet_status", string(fleetHealth.Status),
		"fleet", fleetHealth.Message,
	)
	return nil
}

// registerSampleTools installs a small built-in tool set so the daemon is
// usable out of the box.
func registerSampleTools(engine *tools.Engine) error {
	registry := engine.Registry()

	echo := tools.ToolFunc{
		ToolName:        "echo",
		ToolDescription: "returns its input text",
		ToolCategory:    "util",
		ToolSchema: tools.Schema{Params: []tools.Param{
			{Name: "text", Type: tools.TypeString, Required: true, Description: "text to return"},
		}},
		Fn: func(_ context.Context, params map[string]any) (any, error) {
			return params["text"], nil
		},
	}
	if err := registry.Register(echo, tools.ToolConfig{}); err != nil {
		return err
	}

	now := tools.ToolFunc{
		ToolName:        "time_now",
		ToolDescription: "returns the current time in RFC 3339 format",
		ToolCategory:    "util",
		ToolSchema:      tools.Schema{},
		Fn: func(_ context.Context, _ map[string]any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	}
	if err := registry.Register(now, tools.ToolConfig{
		Cache: &tools.CachePolicy{TTL: time.Second},
	}); err != nil {
		return err
	}

	wordCount := tools.ToolFunc{
		ToolName:        "word_count",
		ToolDescription: "counts the words in a text",
		ToolCategory:    "util",
		ToolSchema: tools.Schema{Params: []tools.Param{
			{Name: "text", Type: tools.TypeString, Required: true},
		}},
		Fn: func(_ context.Context, params map[string]any) (any, error) {
			text, _ := params["text"].(string)
			return len(strings.Fields(text)), nil
		},
	}
	return registry.Register(wordCount, tools.ToolConfig{
		RateLimit: &resilience.RateLimitConfig{MaxCalls: 60, Window: time.Minute},
	})
}

func sampleAgents() []agents.Agent {
	return []agents.Agent{
		agents.NewBaseAgent("util-1", "Utility Agent 1", "util"),
		agents.NewBaseAgent("util-2", "Utility Agent 2", "util"),
	}
}
