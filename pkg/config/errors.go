package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrMissingServiceKey is returned when SERVICE_KEY is unset.
	ErrMissingServiceKey = errors.New("SERVICE_KEY not found in environment or .env file")

	// ErrInvalidServiceURL is returned when an endpoint URL is empty.
	ErrInvalidServiceURL = errors.New("invalid service URL: must not be empty")

	// ErrInvalidTimeout is returned when the request timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid service timeout: must be > 0")

	// ErrNoOutputDir is returned when no output directory is configured.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidCreditLimit is returned when the credit limit is <= 0.
	ErrInvalidCreditLimit = errors.New("invalid credit limit: must be > 0")

	// ErrInvalidThresholds is returned when thresholds are empty or <= 0.
	ErrInvalidThresholds = errors.New("invalid credit thresholds: need at least one value > 0")

	// ErrInvalidDisplayFormat is returned when display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, simple, or json")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")

	// ErrInvalidEnvFile is returned when the .env file cannot be parsed.
	ErrInvalidEnvFile = errors.New("invalid .env file")
)
