package domain

import (
	"errors"
	"fmt"
)

// Status is the outcome class of an operation on a collaborator
type Status string

const (
	// StatusNotFound means the requested object or property does not exist
	StatusNotFound Status = "not_found"

	// StatusInsufficientResources means a pool or limit is exhausted
	StatusInsufficientResources Status = "insufficient_resources"

	// StatusInvalidParameter means the caller passed a bad argument
	StatusInvalidParameter Status = "invalid_parameter"

	// StatusInvalidDeviceState means the object is in the wrong lifecycle state
	StatusInvalidDeviceState Status = "invalid_device_state"

	// StatusUnsuccessful is the catch-all failure
	StatusUnsuccessful Status = "unsuccessful"
)

// StatusError carries a Status along with the failing operation
type StatusError struct {
	Status  Status
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *StatusError) Error() string {
	msg := string(e.Status)
	if e.Message != "" {
		msg = e.Message
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *StatusError) Unwrap() error { return e.Err }

// Is matches any StatusError with the same Status, so
// errors.Is(err, ErrNotFound) works on wrapped errors.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Status == e.Status
}

// Sentinel values for errors.Is
var (
	ErrNotFound              = &StatusError{Status: StatusNotFound}
	ErrInsufficientResources = &StatusError{Status: StatusInsufficientResources}
	ErrInvalidParameter      = &StatusError{Status: StatusInvalidParameter}
	ErrInvalidDeviceState    = &StatusError{Status: StatusInvalidDeviceState}
	ErrUnsuccessful          = &StatusError{Status: StatusUnsuccessful}
)

// NewStatusError creates a StatusError for op
func NewStatusError(status Status, op string, format string, args ...any) *StatusError {
	return &StatusError{
		Status:  status,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapStatus attaches a status to err
func WrapStatus(status Status, op string, err error) *StatusError {
	return &StatusError{Status: status, Op: op, Err: err}
}

// StatusOf extracts the Status carried by err. Errors without one are
// reported as StatusUnsuccessful.
func StatusOf(err error) Status {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusUnsuccessful
}

// IsNotFound reports whether err carries StatusNotFound
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInsufficientResources reports whether err carries StatusInsufficientResources
func IsInsufficientResources(err error) bool { return errors.Is(err, ErrInsufficientResources) }
