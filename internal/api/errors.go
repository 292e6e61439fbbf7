package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure reported by the backend, carrying the status code
// and a user-displayable message. Field-level validation errors, when
// present, map field name to message.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("api: request failed with status %d", e.StatusCode)
}

// IsValidation reports whether the error is a deterministic client-side
// validation failure. Retrying such a request cannot help; the payload
// itself must change. Rate limiting and timeouts are excluded because
// they are retriable.
func (e *Error) IsValidation() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsValidationError reports whether err is a non-retriable validation error.
func IsValidationError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsValidation()
}

// AsError extracts an *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
