// Package storage holds the on-disk pieces of the tool: the JSON
// config file and the SQLite archive of past audit reports. The
// bookmark tree itself is never persisted here; it lives only for the
// duration of a run.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds application configuration.
type Config struct {
	ProbeTimeoutSeconds int    `json:"probeTimeoutSeconds"`
	OracleModel         string `json:"oracleModel"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ProbeTimeoutSeconds: 10,
	}
}

// Validate checks config ranges.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ProbeTimeoutSeconds, validation.Required, validation.Min(1), validation.Max(300)),
		validation.Field(&c.OracleModel, validation.Length(0, 128)),
	)
}

// LoadConfig reads config from the JSON file.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config := DefaultConfig()
			// Non-fatal: return defaults even if the save fails
			_ = SaveConfig(path, &config)
			return &config, nil
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if config.ProbeTimeoutSeconds == 0 {
		config.ProbeTimeoutSeconds = defaults.ProbeTimeoutSeconds
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig writes config to the JSON file.
// Creates the directory if it doesn't exist.
func SaveConfig(path string, config *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfigFilePath returns the default config path:
// ~/.config/bmclean/config.json
func DefaultConfigFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "bmclean", "config.json"), nil
}
