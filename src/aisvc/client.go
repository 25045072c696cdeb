// Package aisvc is the HTTP client for the compute-heavy analytics service
// that several copilot tools delegate to. It carries its own retry policy
// and circuit breaker, independent of the model provider's.
package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/foodflow/copilot/src/breaker"
)

const (
	defaultBaseURL     = "http://localhost:8001"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
	defaultBackoffCap  = 10 * time.Second
)

// ServiceError is an error response from the analytics service.
type ServiceError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ai service error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Config holds the configuration for the analytics service client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Logger      *slog.Logger
	Breaker     *breaker.Breaker
	HTTPClient  *http.Client
}

// Client calls the analytics service with tenant context injection, retry
// on transient failures and circuit-breaker protection.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *breaker.Breaker
}

// NewClient creates a new analytics service client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BackoffBase == 0 {
		config.BackoffBase = defaultBackoffBase
	}
	if config.BackoffCap == 0 {
		config.BackoffCap = defaultBackoffCap
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ai_service_client")

	cb := config.Breaker
	if cb == nil {
		cb = breaker.New(breaker.WithLogger(logger))
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		breaker:    cb,
	}
}

// Breaker exposes the client's circuit breaker state for observability.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// do performs a request with tenant header injection, retrying transient
// failures with exponential backoff. An open circuit fails immediately and
// is not retried.
func (c *Client) do(ctx context.Context, method, endpoint string, tenantID uuid.UUID, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	logger := c.logger.With("endpoint", endpoint, "tenant_id", tenantID.String())

	var result map[string]any
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		err := c.breaker.Call(func() error {
			out, err := c.doOnce(ctx, method, endpoint, tenantID, body)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, breaker.ErrCircuitOpen) {
			logger.Warn("circuit open, request rejected")
			return nil, err
		}
		if !isTransient(err) {
			logger.Error("ai service call failed", "error", err)
			return nil, err
		}

		lastErr = err
		if attempt == c.config.MaxAttempts {
			break
		}

		delay := c.config.BackoffBase << uint(attempt-1)
		if delay > c.config.BackoffCap || delay <= 0 {
			delay = c.config.BackoffCap
		}
		logger.Warn("transient ai service error, retrying", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Error("ai service call failed after all retries", "error", lastErr)
	return nil, fmt.Errorf("ai service request failed after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, tenantID uuid.UUID, body []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tenant-id", tenantID.String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    string(msg),
		}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("ai service call successful",
		"endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// isTransient reports whether the failure is timeout/connection-class or a
// server-side error worth another attempt.
func isTransient(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode >= 500 || svcErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
