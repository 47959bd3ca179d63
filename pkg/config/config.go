package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	goyaml "gopkg.in/yaml.v3"
)

type Config struct {
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
	Engine    EngineConfig    `koanf:"engine" yaml:"engine"`
	Agents    AgentsConfig    `koanf:"agents" yaml:"agents"`
	MCP       MCPConfig       `koanf:"mcp" yaml:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter" yaml:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure" yaml:"otlp_insecure"`
}

type EngineConfig struct {
	DefaultTimeout       time.Duration `koanf:"default_timeout" yaml:"default_timeout"`
	DefaultRetryStrategy string        `koanf:"default_retry_strategy" yaml:"default_retry_strategy"`
	BreakerThreshold     int           `koanf:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldown      time.Duration `koanf:"breaker_cooldown" yaml:"breaker_cooldown"`
	HistorySize          int           `koanf:"history_size" yaml:"history_size"`
	HistoryWindow        time.Duration `koanf:"history_window" yaml:"history_window"`
	CacheSize            int           `koanf:"cache_size" yaml:"cache_size"`
	BatchConcurrency     int           `koanf:"batch_concurrency" yaml:"batch_concurrency"`
}

type AgentsConfig struct {
	MaxAgents           int           `koanf:"max_agents" yaml:"max_agents"`
	HealthCheckInterval time.Duration `koanf:"health_check_interval" yaml:"health_check_interval"`
	AutoRestart         bool          `koanf:"auto_restart" yaml:"auto_restart"`
	Balancing           string        `koanf:"balancing" yaml:"balancing"` // round_robin, least_active, random
}

type MCPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Name    string `koanf:"name" yaml:"name"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "stdout")
	k.Set("telemetry.otlp_insecure", false)

	k.Set("engine.default_timeout", "30s")
	k.Set("engine.default_retry_strategy", "default")
	k.Set("engine.breaker_threshold", 5)
	k.Set("engine.breaker_cooldown", "30s")
	k.Set("engine.history_size", 1000)
	k.Set("engine.history_window", "1h")
	k.Set("engine.cache_size", 128)
	k.Set("engine.batch_concurrency", 10)

	k.Set("agents.max_agents", 10)
	k.Set("agents.health_check_interval", "30s")
	k.Set("agents.auto_restart", true)
	k.Set("agents.balancing", "round_robin")

	k.Set("mcp.enabled", false)
	k.Set("mcp.name", "seiron")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (SEIRON_ENGINE_BREAKER_THRESHOLD -> engine.breaker_threshold)
	if err := k.Load(env.Provider("SEIRON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SEIRON_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// YAML renders the effective configuration, used by -print-config.
func (c *Config) YAML() (string, error) {
	out, err := goyaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
