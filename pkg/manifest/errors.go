package manifest

import "errors"

// Common errors returned by the manifest.
var (
	// ErrArtifactNotFound is returned when no artifact matches.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidID is returned when an artifact ID is not a UUID.
	ErrInvalidID = errors.New("invalid artifact ID")

	// ErrInvalidArtifact is returned when an artifact has no kind or path.
	ErrInvalidArtifact = errors.New("invalid artifact")
)
