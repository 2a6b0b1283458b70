package config

import (
	"os"
	"path/filepath"
)

// defaultOutputDir is relative to the working directory, next to .env.
const defaultOutputDir = "output"

// defaultEnvFile is read from the working directory when present.
const defaultEnvFile = ".env"

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/usage-report/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "usage-report", "config.yaml")
}

// DefaultConfigPath exposes the per-user config location for `config init`.
func DefaultConfigPath() string {
	return defaultConfigPath()
}
