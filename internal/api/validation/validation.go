package validation

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/nkkko/arrivald/internal/api/errors"
)

// Validator defines the interface for request validation
type Validator interface {
	Validate() error
}

// ParseAndValidate decodes a JSON request body into v and validates it
func ParseAndValidate(r *http.Request, v Validator) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.Is(err, io.EOF):
			return errors.ValidationError("empty_request_body", "Request body is empty")
		case stderrors.As(err, &tooLarge):
			return errors.ValidationError("request_too_large",
				"Request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		default:
			return errors.ValidationError("invalid_json", "Invalid JSON format: "+err.Error())
		}
	}

	return v.Validate()
}

// Required validates that a string is not empty
func Required(field, value string) error {
	if value == "" {
		return errors.ValidationError("required_field_missing", field+" is required")
	}
	return nil
}

// MaxLength validates that a string is not longer than maxLen bytes
func MaxLength(field, value string, maxLen int) error {
	if len(value) > maxLen {
		return errors.ValidationError("max_length_exceeded",
			field+" must be at most "+strconv.Itoa(maxLen)+" bytes")
	}
	return nil
}

// UUID validates that value parses as a UUID
func UUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return errors.ValidationError("invalid_uuid", field+" must be a UUID")
	}
	return nil
}
