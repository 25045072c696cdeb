package llmclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/foodflow/copilot/src/breaker"
)

// Config holds the configuration for the provider client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   *int

	// Timeout bounds a single HTTP attempt. The orchestration loop applies
	// its own overall deadline on top.
	Timeout time.Duration

	Retry RetryPolicy

	// Breaker optionally wraps every attempt. When nil the client runs
	// unprotected.
	Breaker *breaker.Breaker

	Logger *slog.Logger

	// HTTPClient overrides the default client. Used in tests.
	HTTPClient *http.Client
}
