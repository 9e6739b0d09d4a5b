// Package config loads duckpond configuration from YAML and environment.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for duckpond.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// DatabasePath is where the embedded DuckDB file lives. The parent
	// directory is created at startup if missing.
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH" env-default:"data/database.duckdb"`

	// Upload limits
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" env-default:"256"`

	// Row paging for get_table_data and /table/{name}/data
	DefaultRowLimit int `yaml:"default_row_limit" env:"DEFAULT_ROW_LIMIT" env-default:"100"`
	MaxRowLimit     int `yaml:"max_row_limit" env:"MAX_ROW_LIMIT" env-default:"10000"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from config.yaml (if present) and the
// environment, then validates it.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects limit configurations that would disable paging bounds.
func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.DefaultRowLimit <= 0 {
		return fmt.Errorf("default_row_limit must be positive, got %d", c.DefaultRowLimit)
	}
	if c.MaxRowLimit < c.DefaultRowLimit {
		return fmt.Errorf("max_row_limit (%d) must be >= default_row_limit (%d)", c.MaxRowLimit, c.DefaultRowLimit)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
