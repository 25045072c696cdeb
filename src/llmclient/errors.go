package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/foodflow/copilot/src/breaker"
)

// Common error variables.
var (
	// ErrNoAPIKey indicates the API key is missing.
	ErrNoAPIKey = errors.New("API key is required")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrAttemptsExhausted wraps the last transient error once the retry
	// budget is spent.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)

// errorResponse matches the provider error body {"error":{...}}.
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// APIError represents an error response from the provider API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
	RequestID  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether the error is a timeout/connection-class
// failure worth retrying. Provider-side 4xx errors are never transient, and
// an open circuit is deliberately not retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// net/http wraps dial and connection-reset failures in *url.Error,
	// which satisfies net.Error only for timeouts. Treat the rest of the
	// operational errors as connection-class.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
