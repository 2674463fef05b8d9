// Package config provides configuration loading and management for
// squawk: layered defaults -> file -> environment, validated before
// use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete squawk coordinator configuration.
type Config struct {
	DataDir string      `yaml:"datadir"`
	LLM     LLMConfig   `yaml:"llm"`
	NATS    NATSConfig  `yaml:"nats"`
	Timing  TimingConfig `yaml:"timing"`
	Retention RetentionConfig `yaml:"retention"`
	Conflict  ConflictConfig  `yaml:"conflict"`
	Port    int         `yaml:"port"`
}

// LLMConfig configures the planner's LLM provider.
type LLMConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout_ms"`
	Provider  string        `yaml:"provider"`
	Endpoint  string        `yaml:"endpoint"`
}

// NATSConfig configures the embedded-or-external NATS connection backing
// the message bus and event fan-out.
type NATSConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
}

// TimingConfig configures the intervals of the supervised background workers.
type TimingConfig struct {
	ReaperInterval    time.Duration `yaml:"reaper_interval_ms"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout_ms"`
	ConflictSweep     time.Duration `yaml:"conflict_sweep_interval_ms"`
}

// RetentionConfig configures the daily pruning cadence of durable state.
type RetentionConfig struct {
	CheckpointDays int `yaml:"checkpoint_retention_days"`
	MetricsDays    int `yaml:"metrics_retention_days"`
	AlertDays      int `yaml:"alert_retention_days"`
}

// ConflictConfig configures the conflict resolver's auto-resolution policy.
type ConflictConfig struct {
	AutoResolveThreshold string `yaml:"autoresolve_threshold"`
	RetentionDays        int    `yaml:"conflict_retention_days"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		LLM: LLMConfig{
			Model:    "claude-3-5-sonnet-20241022",
			Timeout:  2 * time.Minute,
			Provider: "anthropic",
		},
		NATS: NATSConfig{
			Embedded: true,
		},
		Timing: TimingConfig{
			ReaperInterval:    5 * time.Second,
			HeartbeatInterval: 15 * time.Second,
			HeartbeatTimeout:  45 * time.Second,
			ConflictSweep:     10 * time.Second,
		},
		Retention: RetentionConfig{
			CheckpointDays: 7,
			MetricsDays:    7,
			AlertDays:      30,
		},
		Conflict: ConflictConfig{
			AutoResolveThreshold: "medium",
			RetentionDays:        7,
		},
		Port: 8080,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("datadir is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Timing.HeartbeatTimeout <= c.Timing.HeartbeatInterval {
		return fmt.Errorf("timing.heartbeat_timeout_ms must exceed timing.heartbeat_interval_ms")
	}
	switch c.Conflict.AutoResolveThreshold {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("conflict.autoresolve_threshold must be one of low,medium,high,critical")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, applied on top of
// DefaultConfig so missing fields keep sane values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile persists the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge overlays non-zero fields of other onto c (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.LLM.APIKey != "" {
		c.LLM.APIKey = other.LLM.APIKey
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Endpoint != "" {
		c.LLM.Endpoint = other.LLM.Endpoint
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
}
