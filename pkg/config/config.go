// Package config provides configuration loading and management for rawviewer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Discovery parameters
	Discovery struct {
		// Extensions lists the file suffixes treated as images, case-insensitively
		Extensions []string `yaml:"extensions"`

		// InitBatch is how many images must be discovered before the cache is initialised
		InitBatch int `yaml:"initBatch"`

		// Live keeps watching the directory for new images after the initial scan
		Live bool `yaml:"live"`
	} `yaml:"discovery"`

	// Aggregate parameters
	Aggregate struct {
		// LowerBound is the pixel value the "below" aggregate counts under
		LowerBound float64 `yaml:"lowerBound"`

		// UpperBound is the pixel value the "above" aggregate counts over
		UpperBound float64 `yaml:"upperBound"`
	} `yaml:"aggregate"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// SnapshotDir is where the current image is saved on request
		SnapshotDir string `yaml:"snapshotDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Discovery.Extensions = []string{".tif", ".tiff"}
	cfg.Discovery.InitBatch = 3
	cfg.Discovery.Live = false

	// 16-bit detector range
	cfg.Aggregate.LowerBound = 0
	cfg.Aggregate.UpperBound = 65535

	cfg.Output.Verbose = false
	cfg.Output.SnapshotDir = "snapshots"

	return cfg
}

// Validate reports the first inconsistent setting
func (c *Config) Validate() error {
	if c.Discovery.InitBatch < 1 {
		return fmt.Errorf("discovery.initBatch must be at least 1, got %d", c.Discovery.InitBatch)
	}
	if len(c.Discovery.Extensions) == 0 {
		return errors.New("discovery.extensions must not be empty")
	}
	for _, ext := range c.Discovery.Extensions {
		if strings.TrimSpace(ext) == "" {
			return errors.New("discovery.extensions contains an empty entry")
		}
	}
	if c.Aggregate.LowerBound > c.Aggregate.UpperBound {
		return fmt.Errorf("aggregate.lowerBound (%g) exceeds aggregate.upperBound (%g)",
			c.Aggregate.LowerBound, c.Aggregate.UpperBound)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
