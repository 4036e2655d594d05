package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a storage error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same status code, so
// ErrNotFound.WithMessage("...") still satisfies errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}

	// ErrNotConfigured means no backing store is available.
	ErrNotConfigured = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "store not configured",
	}

	// ErrTransport covers network failures and call timeouts.
	ErrTransport = &Error{
		Code:    http.StatusBadGateway,
		Message: "store transport error",
	}
)

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotConfigured reports whether err means no store is configured.
func IsNotConfigured(err error) bool { return errors.Is(err, ErrNotConfigured) }

// IsTransport reports whether err is a transport or timeout failure.
func IsTransport(err error) bool { return errors.Is(err, ErrTransport) }

// IsUnavailable reports whether the store could not be reached at all.
// Read paths treat these errors as an empty result.
func IsUnavailable(err error) bool {
	return IsNotConfigured(err) || IsTransport(err)
}
