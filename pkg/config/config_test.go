package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("test-version")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "test-version", cfg.Version)
	assert.Equal(t, "data/database.duckdb", cfg.DatabasePath)
	assert.Equal(t, int64(256), cfg.MaxUploadMB)
	assert.Equal(t, 100, cfg.DefaultRowLimit)
	assert.Equal(t, 10000, cfg.MaxRowLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("DATABASE_PATH", "/tmp/pond.duckdb")
	t.Setenv("MAX_UPLOAD_MB", "16")
	t.Setenv("DEFAULT_ROW_LIMIT", "25")
	t.Setenv("MAX_ROW_LIMIT", "250")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("v1")
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "/tmp/pond.duckdb", cfg.DatabasePath)
	assert.Equal(t, int64(16), cfg.MaxUploadMB)
	assert.Equal(t, 25, cfg.DefaultRowLimit)
	assert.Equal(t, 250, cfg.MaxRowLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero upload cap", "MAX_UPLOAD_MB", "0"},
		{"negative default limit", "DEFAULT_ROW_LIMIT", "-1"},
		{"max below default", "MAX_ROW_LIMIT", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("v1")
			assert.Error(t, err)
		})
	}
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := &Config{MaxUploadMB: 2}
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes())
}
