// Package config loads critdb configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the critdb configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Build BuildConfig `yaml:"build"`
}

// APIConfig points at the remote packages API.
type APIConfig struct {
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
}

// BuildConfig controls the snapshot build.
type BuildConfig struct {
	Output         string `yaml:"output"`
	PageSize       int    `yaml:"page_size"`
	Concurrency    int    `yaml:"concurrency"`
	RequestDelayMS int    `yaml:"request_delay_ms"`
}

// RequestDelay is the fixed pause applied after every outbound request.
func (b BuildConfig) RequestDelay() time.Duration {
	return time.Duration(b.RequestDelayMS) * time.Millisecond
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:       "https://packages.ecosyste.ms/api/v1",
			UserAgent: "critdb/1.0",
		},
		Build: BuildConfig{
			Output:         "critical.db",
			PageSize:       1000,
			Concurrency:    10,
			RequestDelayMS: 100,
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for critdb.yaml in the current
// directory. Fields missing from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = "critdb.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	if cfg.Build.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be positive, got %d", cfg.Build.PageSize)
	}
	if cfg.Build.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Build.Concurrency)
	}
	return cfg, nil
}
