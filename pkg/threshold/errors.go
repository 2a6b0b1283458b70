package threshold

import "errors"

var (
	// ErrInvalidLimit indicates a limit that is not a positive finite number.
	ErrInvalidLimit = errors.New("credit limit must be positive")

	// ErrInvalidThreshold indicates a missing, malformed or non-positive threshold.
	ErrInvalidThreshold = errors.New("invalid threshold")
)
