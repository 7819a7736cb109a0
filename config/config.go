// ABOUTME: Runtime configuration for the megra core
// ABOUTME: Handles loading/saving TOML config files with fallback to defaults

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RuntimeConfig holds the tunable runtime parameters.
type RuntimeConfig struct {
	// LatencyMs is the forward-lookahead handed to the audio backend.
	LatencyMs float64 `toml:"latency_ms"`

	// DefaultDurationMs is the fallback transition duration.
	DefaultDurationMs float64 `toml:"default_duration_ms"`

	// OutputMode selects the channel layout: "stereo", "4ch" or "8ch".
	OutputMode string `toml:"output_mode"`

	// SampleRoot is the directory scanned and watched for sample files.
	SampleRoot string `toml:"sample_root"`

	// LifemodelGlobalResources seeds the process-wide lifemodel pool.
	LifemodelGlobalResources float64 `toml:"lifemodel_global_resources"`
}

// GetConfigPath returns the default config file path
// First tries current directory, then falls back to ~/.config/megra/config.toml
func GetConfigPath() string {
	// First try current directory
	if _, err := os.Stat("./megra.toml"); err == nil {
		return "./megra.toml"
	}

	// Then try ~/.config/megra/config.toml
	home, err := os.UserHomeDir()
	if err != nil {
		return "./megra.toml"
	}

	return filepath.Join(home, ".config", "megra", "config.toml")
}

// LoadConfig loads configuration from a TOML file
// If the file doesn't exist or fails to load, returns default config
func LoadConfig(path string) (RuntimeConfig, error) {
	// Try to read the file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return DefaultConfig(), nil
		}
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse TOML
	var config RuntimeConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return fillDefaults(config), nil
}

// SaveConfig saves configuration to a TOML file
func SaveConfig(path string, config RuntimeConfig) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Warning: failed to close config file: %v\n", err)
		}
	}()

	// Encode config as TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfig returns the stock runtime configuration
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		LatencyMs:                50,
		DefaultDurationMs:        200,
		OutputMode:               "stereo",
		SampleRoot:               "",
		LifemodelGlobalResources: 200,
	}
}

// fillDefaults replaces zero fields with their defaults so a partial config
// file behaves sensibly
func fillDefaults(config RuntimeConfig) RuntimeConfig {
	defaults := DefaultConfig()

	if config.LatencyMs == 0 {
		config.LatencyMs = defaults.LatencyMs
	}

	if config.DefaultDurationMs == 0 {
		config.DefaultDurationMs = defaults.DefaultDurationMs
	}

	if config.OutputMode == "" {
		config.OutputMode = defaults.OutputMode
	}

	if config.LifemodelGlobalResources == 0 {
		config.LifemodelGlobalResources = defaults.LifemodelGlobalResources
	}

	return config
}
