package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 8, cfg.ConcurrencyLimit)
	assert.Equal(t, "ocs", cfg.MetricsNamespace)
	assert.Empty(t, cfg.Scenario)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "cache disabled", modify: func(c *Config) { c.CacheSize = 0 }},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "invalid" }, expectError: true},
		{name: "negative cache", modify: func(c *Config) { c.CacheSize = -1 }, expectError: true},
		{name: "zero concurrency", modify: func(c *Config) { c.ConcurrencyLimit = 0 }, expectError: true},
		{name: "empty namespace", modify: func(c *Config) { c.MetricsNamespace = "" }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	// Missing file falls back to defaults
	cfg, err := LoadConfig("non-existent.toml")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocsroute.toml")
	content := "log_level = \"debug\"\ncache_size = 0\nscenario = \"topo.toml\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0, cfg.CacheSize)
	assert.Equal(t, "topo.toml", cfg.Scenario)
	assert.Equal(t, 8, cfg.ConcurrencyLimit)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("OCSROUTE_CONCURRENCY_LIMIT", "32")
	t.Setenv("OCSROUTE_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.ConcurrencyLimit)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"loud\"\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigSave(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CacheSize = 64
	path := filepath.Join(t.TempDir(), "saved.toml")

	require.NoError(t, cfg.Save(path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
