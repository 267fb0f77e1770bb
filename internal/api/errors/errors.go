package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/nkkko/arrivald/internal/domain"
)

// ErrorType defines the type of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeInternal    ErrorType = "internal"
)

// APIError represents a standardized API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	HTTPCode  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

func newError(t ErrorType, httpCode int, code, message string) *APIError {
	return &APIError{
		Type:     t,
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
	}
}

// ValidationError creates a new validation error
func ValidationError(code string, message string) *APIError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, code, message)
}

// NotFoundError creates a new not found error
func NotFoundError(code string, message string) *APIError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, code, message)
}

// ConflictError creates a new conflict error
func ConflictError(code string, message string) *APIError {
	return newError(ErrorTypeConflict, http.StatusConflict, code, message)
}

// UnavailableError creates a new service unavailable error
func UnavailableError(code string, message string) *APIError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, code, message)
}

// InternalError creates a new internal server error
func InternalError(code string, message string) *APIError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, code, message)
}

// FromError converts err to an APIError. Domain status errors keep their
// status as the code; anything else is reported as internal.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var statusErr *domain.StatusError
	if !stderrors.As(err, &statusErr) {
		return InternalError("internal_error", err.Error())
	}

	code := string(statusErr.Status)
	switch statusErr.Status {
	case domain.StatusNotFound:
		return NotFoundError(code, err.Error())
	case domain.StatusInvalidParameter:
		return ValidationError(code, err.Error())
	case domain.StatusInvalidDeviceState:
		return ConflictError(code, err.Error())
	case domain.StatusInsufficientResources:
		return UnavailableError(code, err.Error())
	default:
		return InternalError(code, err.Error())
	}
}
