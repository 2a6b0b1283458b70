package identity

import "errors"

var (
	// ErrMappingNotFound indicates the mapping file does not exist.
	ErrMappingNotFound = errors.New("email mapping not found")

	// ErrInvalidMapping indicates the mapping file is not a JSON object of strings.
	ErrInvalidMapping = errors.New("invalid email mapping")
)
