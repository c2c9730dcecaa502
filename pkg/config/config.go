// Package config provides configuration loading and management for voxeledit.
// It handles loading configuration from YAML files and provides default values
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Volume describes the image created when a session starts
	Volume struct {
		// Size is the number of voxels along x, y and z
		Size [3]int `yaml:"size"`

		// Spacing is the physical voxel size in mm
		Spacing [3]float64 `yaml:"spacing"`

		// Origin is the physical position of the first voxel in mm
		Origin [3]float64 `yaml:"origin"`

		// PixelType is one of uint8, int8, uint16, int16, uint32, int32,
		// uint64, int64, float32, float64
		PixelType string `yaml:"pixelType"`
	} `yaml:"volume"`

	// Drawing parameters for the line drawer
	Drawing struct {
		// Thickness is the brush diameter in mm
		Thickness float64 `yaml:"thickness"`

		// Overwrite allows painting over voxels that are not empty
		Overwrite bool `yaml:"overwrite"`

		// Value is the default value painted
		Value string `yaml:"value"`
	} `yaml:"drawing"`

	// Propagation parameters for min/max region growing
	Propagation struct {
		// Radius bounds the distance to the nearest seed in mm
		Radius float64 `yaml:"radius"`

		// Mode is min, max or minmax
		Mode string `yaml:"mode"`

		// Connectivity is 6, 18 or 26
		Connectivity int `yaml:"connectivity"`

		// Overwrite allows painting over voxels that are not empty
		Overwrite bool `yaml:"overwrite"`

		// Value is the default value painted
		Value string `yaml:"value"`
	} `yaml:"propagation"`

	// History bounds the undo stack; zero disables a bound
	History struct {
		MaxCommands int `yaml:"maxCommands"`
		MaxMemory   int `yaml:"maxMemory"`
	} `yaml:"history"`

	// Logging parameters
	Logging struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// Output parameters
	Output struct {
		// SnapshotDir is where slice snapshots are written
		SnapshotDir string `yaml:"snapshotDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Volume.Size = [3]int{64, 64, 64}
	cfg.Volume.Spacing = [3]float64{1, 1, 1}
	cfg.Volume.PixelType = "uint8"

	cfg.Drawing.Thickness = 1
	cfg.Drawing.Overwrite = true
	cfg.Drawing.Value = "1"

	cfg.Propagation.Radius = 10
	cfg.Propagation.Mode = "minmax"
	cfg.Propagation.Connectivity = 6
	cfg.Propagation.Overwrite = true
	cfg.Propagation.Value = "1"

	cfg.Logging.Level = "info"

	cfg.Output.SnapshotDir = "snapshots"

	return cfg
}

// Validate checks the values that have a restricted domain
func (cfg *Config) Validate() error {
	for axis, n := range cfg.Volume.Size {
		if n <= 0 {
			return fmt.Errorf("volume size along axis %d must be positive, got %d", axis, n)
		}
	}
	if cfg.Drawing.Thickness <= 0 {
		return fmt.Errorf("drawing thickness must be positive, got %g", cfg.Drawing.Thickness)
	}
	switch cfg.Propagation.Connectivity {
	case 6, 18, 26:
	default:
		return fmt.Errorf("propagation connectivity must be 6, 18 or 26, got %d", cfg.Propagation.Connectivity)
	}
	if cfg.History.MaxCommands < 0 || cfg.History.MaxMemory < 0 {
		return fmt.Errorf("history limits must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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
	// Create directory if it doesn't exist
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
