package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SQUAWK_"

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
	path   string
}

// NewLoader creates a configuration loader that logs to logger (or
// slog.Default if nil).
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// WithFile pins an explicit config file path instead of auto-discovery.
func (l *Loader) WithFile(path string) *Loader {
	l.path = path
	return l
}

// Load loads configuration with layered precedence:
//  1. DefaultConfig
//  2. YAML file (explicit --config path, if set)
//  3. Environment variables (SQUAWK_*)
//  4. Validate
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.path != "" {
		if fileCfg, err := LoadFromFile(l.path); err == nil {
			l.logger.Debug("loaded config file", slog.String("path", l.path))
			cfg.Merge(fileCfg)
		} else if !os.IsNotExist(err) {
			l.logger.Warn("failed to load config file", slog.String("path", l.path), slog.String("error", err.Error()))
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DATADIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvPrefix + "LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvPrefix + "LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvPrefix + "NATS_URL"); v != "" {
		cfg.NATS.URL = v
		cfg.NATS.Embedded = false
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		} else {
			l.logger.Warn("invalid SQUAWK_PORT", slog.String("value", v))
		}
	}
	if v := os.Getenv(EnvPrefix + "REAPER_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timing.ReaperInterval = time.Duration(n) * time.Millisecond
		}
	}
}
