// Package config provides configuration management for usage-report.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority, applied by the caller)
// 2. Process environment variables
// 3. A .env file (never overrides variables already set)
// 4. Configuration file
// 5. Default values (lowest priority)
//
// The service key is only ever read from the SERVICE_KEY variable and is
// never written back by Save.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Reports go to %s\n", cfg.Output.Dir)
package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Service.URL and Service.UserPageURL are non-empty
// - Service.Timeout > 0
// - Output.Dir is non-empty
// - Credit.Limit > 0 and every threshold > 0.
type Config struct {
	// Analytics service settings
	Service ServiceConfig `yaml:"service"`

	// Report output settings
	Output OutputConfig `yaml:"output"`

	// Artifact manifest settings
	Storage StorageConfig `yaml:"storage"`

	// Credit monitoring settings
	Credit CreditConfig `yaml:"credit"`

	// Console display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig contains analytics endpoint settings.
type ServiceConfig struct {
	// Analytics query endpoint
	URL string `yaml:"url"`

	// User page endpoint used to build the email mapping
	UserPageURL string `yaml:"user_page_url"`

	// Per-request timeout
	Timeout time.Duration `yaml:"timeout"`

	// ServiceKey comes from SERVICE_KEY only.
	ServiceKey string `yaml:"-"`
}

// OutputConfig contains report output settings.
type OutputConfig struct {
	// Directory receiving CSV and JSON reports
	Dir string `yaml:"dir"`

	// Prometheus textfile written after each run; empty disables it
	MetricsFile string `yaml:"metrics_file"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to the bbolt artifact manifest; empty means <output.dir>/manifest.db
	ManifestPath string `yaml:"manifest_path"`
}

// CreditConfig contains credit threshold settings.
type CreditConfig struct {
	// Credit limit per user
	Limit float64 `yaml:"limit"`

	// Threshold percentages of the limit
	Thresholds []float64 `yaml:"thresholds"`
}

// DisplayConfig contains console display settings.
type DisplayConfig struct {
	// Console format (table, simple, json)
	Format string `yaml:"format"`

	// Enable colored output when stdout is a terminal
	ColorEnabled bool `yaml:"color_enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// ManifestPath resolves the manifest location.
func (c *Config) ManifestPath() string {
	if c.Storage.ManifestPath != "" {
		return c.Storage.ManifestPath
	}
	return filepath.Join(c.Output.Dir, "manifest.db")
}

// RequireServiceKey returns ErrMissingServiceKey when no key is configured.
// Only commands that call the network need one.
func (c *Config) RequireServiceKey() error {
	if strings.TrimSpace(c.Service.ServiceKey) == "" {
		return ErrMissingServiceKey
	}
	return nil
}

// Validate checks if the configuration satisfies all invariants.
func (c *Config) Validate() error {
	if c.Service.URL == "" || c.Service.UserPageURL == "" {
		return ErrInvalidServiceURL
	}
	if c.Service.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if strings.TrimSpace(c.Output.Dir) == "" {
		return ErrNoOutputDir
	}

	if c.Credit.Limit <= 0 {
		return ErrInvalidCreditLimit
	}
	if len(c.Credit.Thresholds) == 0 {
		return ErrInvalidThresholds
	}
	for _, t := range c.Credit.Thresholds {
		if t <= 0 {
			return ErrInvalidThresholds
		}
	}

	validFormats := map[string]bool{
		"table":  true,
		"simple": true,
		"json":   true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:         "https://server.codeium.com/api/v1/Analytics",
			UserPageURL: "https://server.codeium.com/api/v1/UserPageAnalytics",
			Timeout:     60 * time.Second,
		},
		Output: OutputConfig{
			Dir: defaultOutputDir,
		},
		Credit: CreditConfig{
			Limit:      1500,
			Thresholds: []float64{75, 85, 95},
		},
		Display: DisplayConfig{
			Format:       "table",
			ColorEnabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
