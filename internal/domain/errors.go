package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for users, projects or drawings that have
// no record. Terminal; surfaced as 404.
var ErrNotFound = errors.New("not found")

// ValidationError covers bad roles, out-of-range coordinates, invalid
// zoom levels and missing required fields. Surfaced as 400, never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DigitizationError marks a drawing whose layout cannot be parsed into
// valid structured data. Terminal; the input must be corrected and
// resubmitted.
type DigitizationError struct {
	Message string
	Err     error
}

func (e *DigitizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("digitization failed: %s: %v", e.Message, e.Err)
	}
	return "digitization failed: " + e.Message
}

func (e *DigitizationError) Unwrap() error {
	return e.Err
}

// UpstreamError marks a failing external collaborator. Recovered
// locally; never surfaced as a request failure.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
