package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched with errors.Is against *APIError.
var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
)

// Envelope is the standard response body of the marketplace API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// APIError is returned when the API answers with a 4xx or 5xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the top-level "message" of the response body, if any.
	Message string
	// Body is the raw response body.
	Body []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Payload decodes the body as JSON. It returns nil when the body is not JSON.
func (e *APIError) Payload() any {
	if len(e.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return nil
	}
	return v
}

// Hint returns a user-facing suggestion for common statuses.
func (e *APIError) Hint() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return "Your session has expired. Run 'farmcart login' again."
	case e.StatusCode == http.StatusForbidden:
		return "Your role is not allowed to perform this operation."
	case e.StatusCode == http.StatusNotFound:
		return "The record may have been removed. Refresh the list and try again."
	case e.StatusCode >= 500:
		return "The marketplace API is having trouble. Retry in a moment."
	}
	return ""
}
