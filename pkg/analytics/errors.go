package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingServiceKey indicates no service key was configured.
	ErrMissingServiceKey = errors.New("SERVICE_KEY is not set")

	// ErrAllRequestsFailed indicates every sub-request of a fetch failed, as
	// opposed to the service returning no rows.
	ErrAllRequestsFailed = errors.New("all analytics requests failed")

	// ErrInvalidResponse indicates a 2xx response whose body is not valid JSON.
	ErrInvalidResponse = errors.New("invalid analytics response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Body is the decoded JSON error body, nil when the body was not JSON.
	Body interface{}

	// Text is the raw body.
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analytics request failed with status %d: %s", e.StatusCode, e.Detail())
}

// Detail renders the parsed JSON body when there is one, the raw text otherwise.
func (e *StatusError) Detail() string {
	if e.Body != nil {
		if b, err := json.Marshal(e.Body); err == nil {
			return string(b)
		}
	}
	return e.Text
}
