// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Secrets come from the
// environment, never from checked-in files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir"`

	// AdminSecret protects the maintenance endpoint. Env only.
	AdminSecret string `yaml:"-"`

	// RetentionDays is the audit window before revoked/expired vouches
	// are hard-deleted.
	RetentionDays int `yaml:"retention_days"`

	// MaintenanceHours is the interval between maintenance runs.
	MaintenanceHours int `yaml:"maintenance_hours"`

	// RateLimitPerMinute is the per-IP HTTP request allowance.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		DataDir:            "data",
		RetentionDays:      90,
		MaintenanceHours:   24,
		RateLimitPerMinute: 120,
	}
}

// Load reads configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("ISNAD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("ISNAD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ISNAD_SECRET"); v != "" {
		cfg.AdminSecret = v
	}
	if v := os.Getenv("ISNAD_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ISNAD_RETENTION_DAYS: %q", v)
		}
		cfg.RetentionDays = n
	}
	if v := os.Getenv("ISNAD_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ISNAD_RATE_LIMIT: %q", v)
		}
		cfg.RateLimitPerMinute = n
	}

	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ISNAD_SECRET environment variable is required")
	}
	return cfg, nil
}
