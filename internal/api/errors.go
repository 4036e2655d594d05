package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/http/response"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status    int
	Code      string `json:"code" doc:"Machine-readable error code"`
	Message   string `json:"message" doc:"Human-readable error message"`
	Details   any    `json:"details,omitempty" doc:"Additional error details"`
	Retryable bool   `json:"retryable,omitempty" doc:"Whether the request may succeed if retried"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			if isMappedError(err) {
				code, body := response.Describe(err)
				return &APIError{
					status:    code,
					Code:      body.Code,
					Message:   body.Message,
					Details:   body.Details,
					Retryable: body.Retryable,
				}
			}
		}

		// Request validation failures carry huma's per-field details.
		var details any
		if status == http.StatusUnprocessableEntity || status == http.StatusBadRequest {
			details = fieldErrors(errs)
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
			Details: details,
		}
	}
}

// isMappedError reports whether err belongs to one of the error families
// with a known HTTP mapping.
func isMappedError(err error) bool {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return true
	}
	var storeErr *store.Error
	return errors.As(err, &storeErr)
}

func fieldErrors(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(domainerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domainerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domainerrors.CodeConflict)
	case http.StatusServiceUnavailable:
		return string(domainerrors.CodeUnavailable)
	default:
		return string(domainerrors.CodeInternal)
	}
}
