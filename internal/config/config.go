package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/wesleywu/ocs-route/internal/logger"
)

const envPrefix = "OCSROUTE"

// Config represents the runtime configuration of the forwarding engine
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	// Scenario is the topology file; empty selects the embedded sample
	Scenario string `mapstructure:"scenario"`

	// Performance
	CacheSize        int `mapstructure:"cache_size"`
	ConcurrencyLimit int `mapstructure:"concurrency_limit"`

	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// NewDefaultConfig creates a new config with default values
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		CacheSize:        1024,
		ConcurrencyLimit: 8,
		MetricsNamespace: "ocs",
	}
}

// Validate checks the config for invalid values
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative: %d", c.CacheSize)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("concurrency limit must be positive: %d", c.ConcurrencyLimit)
	}
	if c.MetricsNamespace == "" {
		return fmt.Errorf("metrics namespace cannot be empty")
	}
	return nil
}

func newViper(c *Config) *viper.Viper {
	v := viper.New()
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("scenario", c.Scenario)
	v.SetDefault("cache_size", c.CacheSize)
	v.SetDefault("concurrency_limit", c.ConcurrencyLimit)
	v.SetDefault("metrics_namespace", c.MetricsNamespace)
	return v
}

// LoadConfig reads path (any format viper understands) over the defaults.
// OCSROUTE_* environment variables override both. An empty or missing path
// loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := newViper(NewDefaultConfig())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path; the extension selects the format
func (c *Config) Save(path string) error {
	if err := newViper(c).WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
