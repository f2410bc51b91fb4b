package calendar

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an event id is not in the expected bucket.
var ErrNotFound = errors.New("calendar: event not found")

// ValidationError rejects a request synchronously; state is unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Kind reports the error category used by the API layer.
func (e *ValidationError) Kind() string { return "validation" }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Invalid builds a ValidationError for callers outside the package.
func Invalid(field, format string, args ...any) error {
	return invalid(field, format, args...)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
