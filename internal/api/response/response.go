package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nkkko/arrivald/internal/api/errors"
	"github.com/nkkko/arrivald/internal/logging"
)

// Response is the envelope of every API response
type Response struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     any    `json:"error,omitempty"`
	Meta      any    `json:"meta,omitempty"`
}

// ListMeta describes a list response
type ListMeta struct {
	Count int `json:"count"`
}

// JSON sends a successful response
func JSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	send(w, r, statusCode, Response{
		Success:   statusCode >= 200 && statusCode < 300,
		RequestID: middleware.GetReqID(r.Context()),
		Data:      data,
	})
}

// List sends a successful list response with its count
func List(w http.ResponseWriter, r *http.Request, data any, count int) {
	send(w, r, http.StatusOK, Response{
		Success:   true,
		RequestID: middleware.GetReqID(r.Context()),
		Data:      data,
		Meta:      ListMeta{Count: count},
	})
}

// Error sends an error response with the status mapped from err
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())
	apiErr := errors.FromError(err).WithRequestID(requestID)

	send(w, r, apiErr.HTTPCode, Response{
		Success:   false,
		RequestID: requestID,
		Error:     apiErr,
	})
}

func send(w http.ResponseWriter, r *http.Request, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}
