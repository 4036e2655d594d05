// Package response writes JSON responses for the handlers that sit outside
// the huma API: router fallbacks, middleware rejections and the event stream.
// Error bodies share the shape of the API's error responses.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// JSON writes data with the given status code using json/v2.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Code: string(code), Message: message}, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, domainerrors.CodeNotFound, message, logger)
}

// MethodNotAllowed writes a 405 Method Not Allowed response.
func MethodNotAllowed(w http.ResponseWriter, logger *slog.Logger) {
	JSON(w, http.StatusMethodNotAllowed, ErrorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"}, logger)
}

// TooManyRequests writes a 429 response. Clients may retry later.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	w.Header().Set("Retry-After", "60")
	JSON(w, http.StatusTooManyRequests, ErrorBody{Code: "RATE_LIMITED", Message: message, Retryable: true}, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, domainerrors.CodeInternal, message, logger)
}

// HandleError writes the response matching err. Domain errors keep their
// code and details, store errors map through their HTTP code, and anything
// else is a 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, body := Describe(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("Request failed", "error", err)
	}
	JSON(w, status, body, logger)
}

// Describe returns the status code and body for err.
func Describe(err error) (int, ErrorBody) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), ErrorBody{
			Code:      string(domainErr.Code),
			Message:   domainErr.Message,
			Details:   domainErr.Details,
			Retryable: domainErr.Code.Retryable(),
		}
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		code := codeForStatus(storeErr.HTTPCode())
		return storeErr.HTTPCode(), ErrorBody{
			Code:      string(code),
			Message:   storeErr.Message,
			Retryable: code.Retryable(),
		}
	}

	return http.StatusInternalServerError, ErrorBody{
		Code:    string(domainerrors.CodeInternal),
		Message: "internal server error",
	}
}

// codeForStatus maps an HTTP status back to a domain code.
func codeForStatus(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return domainerrors.CodeValidation
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeConflict
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return domainerrors.CodeTransport
	case http.StatusServiceUnavailable:
		return domainerrors.CodeNotConfigured
	default:
		return domainerrors.CodeInternal
	}
}
