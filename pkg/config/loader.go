package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables understood by the loader.
const (
	EnvServiceKey = "SERVICE_KEY"
	EnvConfig     = "USAGE_REPORT_CONFIG"
	EnvOutputDir  = "USAGE_REPORT_OUTPUT_DIR"
	EnvLogLevel   = "USAGE_REPORT_LOG_LEVEL"
	EnvAPIURL     = "USAGE_REPORT_API_URL"
	EnvManifest   = "USAGE_REPORT_MANIFEST"
	EnvTimeout    = "USAGE_REPORT_TIMEOUT"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load merges defaults, the config file, the .env file and the process
	// environment, then validates the result.
	Load() (*Config, error)

	// LoadFromFile decodes a config file on top of the defaults without
	// applying the environment or validating.
	LoadFromFile(path string) (*Config, error)
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	envFile    string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, USAGE_REPORT_CONFIG is consulted, then
// ./config.yaml, then ~/.config/usage-report/config.yaml. If envFile is
// empty, ./.env is read when it exists.
func NewLoader(configPath, envFile string) Loader {
	return &loader{
		configPath: configPath,
		envFile:    envFile,
		lookupEnv:  os.LookupEnv,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	env, err := l.environment()
	if err != nil {
		return nil, err
	}

	cfg := Default()

	explicit := l.configPath
	if explicit == "" {
		explicit = env(EnvConfig)
	}

	configPath := explicit
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// A named file must load; a discovered one may be skipped.
			if explicit != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	if err := applyEnvVars(cfg, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// environment returns a lookup that prefers the process environment and
// falls back to the .env file.
func (l *loader) environment() (func(string) string, error) {
	dotenv := map[string]string{}

	path := l.envFile
	if path == "" {
		path = defaultEnvFile
	}

	if _, statErr := os.Stat(path); statErr == nil {
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEnvFile, path, err)
		}
		dotenv = values
	} else if l.envFile != "" {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEnvFile, path, statErr)
	}

	return func(key string) string {
		if v, ok := l.lookupEnv(key); ok && v != "" {
			return v
		}
		return dotenv[key]
	}, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment overrides to the configuration.
func applyEnvVars(cfg *Config, env func(string) string) error {
	cfg.Service.ServiceKey = strings.TrimSpace(env(EnvServiceKey))

	if url := env(EnvAPIURL); url != "" {
		cfg.Service.URL = url
	}

	if timeout := env(EnvTimeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidTimeout, EnvTimeout, timeout)
		}
		cfg.Service.Timeout = d
	}

	if dir := env(EnvOutputDir); dir != "" {
		cfg.Output.Dir = dir
	}

	if manifest := env(EnvManifest); manifest != "" {
		cfg.Storage.ManifestPath = manifest
	}

	if level := env(EnvLogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	return nil
}

// Load is a convenience function that creates a loader and loads configuration.
func Load() (*Config, error) {
	return NewLoader("", "").Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist. The service key is never
// written. File is created with 0600 permissions.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether err means the config file was missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}
