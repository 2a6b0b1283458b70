package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrNoFilesFound is returned when no file matches the prefix and extension.
	ErrNoFilesFound = errors.New("no matching files found")

	// ErrInvalidPath is returned when a directory exists but cannot be read.
	ErrInvalidPath = errors.New("invalid or inaccessible path")
)
