package report

import "errors"

// Common errors returned by report builders.
var (
	// ErrInputNotFound is returned when an input file is missing and no
	// earlier artifact can stand in for it.
	ErrInputNotFound = errors.New("input file not found")

	// ErrInvalidInput is returned when an input file cannot be parsed.
	ErrInvalidInput = errors.New("invalid input file")

	// ErrNoAccounts is returned when account filters were given but none
	// resolved to an API key, or a per-account report has nobody to query.
	ErrNoAccounts = errors.New("no API keys to query")

	// ErrInvalidOption is returned for out-of-range report options.
	ErrInvalidOption = errors.New("invalid option")

	// ErrMissingColumn is returned when an input CSV lacks a required column.
	ErrMissingColumn = errors.New("missing column")
)
