package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnavailable is returned when the circuit breaker rejects a call before
// it reaches the provider.
var ErrUnavailable = errors.New("provider unavailable")

// APIError is a non-2xx response from the provider, carrying the provider's
// own error message when one was parseable.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider returned status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// Retriable reports whether the failure is worth retrying: server-side
// errors and rate limiting, not request validation.
func (e *APIError) Retriable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func parseAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       envelope.Error.Type,
			Message:    envelope.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}
}
