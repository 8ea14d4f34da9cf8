// Package config loads tribesim settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds process-wide settings.
type Config struct {
	DBDriver     string        `env:"TRIBESIM_DB_DRIVER" envDefault:"sqlite"`
	DBDSN        string        `env:"TRIBESIM_DB_DSN" envDefault:"data/tribes.db"`
	Port         int           `env:"TRIBESIM_PORT" envDefault:"8080"`
	TickInterval time.Duration `env:"TRIBESIM_TICK_INTERVAL" envDefault:"1m"`
	Seed         int64         `env:"TRIBESIM_SEED" envDefault:"0"`
	AdminKey     string        `env:"TRIBESIM_ADMIN_KEY"`
	LogLevel     string        `env:"TRIBESIM_LOG_LEVEL" envDefault:"info"`
	SeedTribes   int           `env:"TRIBESIM_SEED_TRIBES" envDefault:"1"`
	Workers      int           `env:"TRIBESIM_WORKERS" envDefault:"4"`
	Jitter       float64       `env:"TRIBESIM_FOUNDER_JITTER" envDefault:"0.05"`
	RandomOrgKey string        `env:"RANDOM_ORG_API_KEY"`
}

// Load parses the environment into a Config and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx", "memory":
	default:
		return fmt.Errorf("TRIBESIM_DB_DRIVER: unsupported driver %q", c.DBDriver)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TRIBESIM_TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("TRIBESIM_PORT out of range: %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("TRIBESIM_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.SeedTribes < 0 {
		return fmt.Errorf("TRIBESIM_SEED_TRIBES must not be negative, got %d", c.SeedTribes)
	}
	if c.Jitter < 0 || c.Jitter > 0.5 {
		return fmt.Errorf("TRIBESIM_FOUNDER_JITTER must be within [0, 0.5], got %g", c.Jitter)
	}
	return nil
}

// Level maps LogLevel to a slog level. Unknown names fall back to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
