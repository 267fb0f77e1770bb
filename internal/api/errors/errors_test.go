package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/nkkko/arrivald/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestFromErrorMapsStatus(t *testing.T) {
	tests := []struct {
		status   domain.Status
		httpCode int
		errType  ErrorType
	}{
		{domain.StatusNotFound, http.StatusNotFound, ErrorTypeNotFound},
		{domain.StatusInvalidParameter, http.StatusBadRequest, ErrorTypeValidation},
		{domain.StatusInvalidDeviceState, http.StatusConflict, ErrorTypeConflict},
		{domain.StatusInsufficientResources, http.StatusServiceUnavailable, ErrorTypeUnavailable},
		{domain.StatusUnsuccessful, http.StatusInternalServerError, ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			// Wrapping must not hide the status
			err := fmt.Errorf("handler: %w", domain.NewStatusError(tt.status, "op", "boom"))

			apiErr := FromError(err)
			assert.Equal(t, tt.httpCode, apiErr.HTTPCode)
			assert.Equal(t, tt.errType, apiErr.Type)
			assert.Equal(t, string(tt.status), apiErr.Code)
		})
	}
}

func TestFromErrorPassesAPIErrorThrough(t *testing.T) {
	orig := ValidationError("missing_device_id", "device_id is required")
	assert.Same(t, orig, FromError(orig))
}

func TestFromErrorPlainError(t *testing.T) {
	apiErr := FromError(fmt.Errorf("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, apiErr.HTTPCode)
	assert.Equal(t, "internal_error", apiErr.Code)
	assert.Nil(t, FromError(nil))
}

func TestErrorString(t *testing.T) {
	err := NotFoundError("target_not_found", "no such target").WithRequestID("req-1")
	assert.Equal(t, "[not_found] target_not_found: no such target", err.Error())
	assert.Equal(t, "req-1", err.RequestID)
}
