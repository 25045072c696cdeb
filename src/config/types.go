// Package config defines the copilot service configuration: file loading,
// environment overrides, defaults, and validation.
package config

import (
	"time"
)

// Config is the complete copilot configuration.
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// LLM holds the language model provider settings
	LLM LLMConfig `json:"llm"`

	// AIService holds the downstream analytics service settings
	AIService AIServiceConfig `json:"ai_service"`

	// Database holds persistence settings
	Database DatabaseConfig `json:"database"`

	// Engine holds orchestration loop settings
	Engine EngineConfig `json:"engine"`

	// Logging configuration
	Logging LoggingConfig `json:"logging,omitempty"`

	// Debug enables debug logging regardless of the configured level
	Debug bool `json:"debug,omitempty"`
}

// LLMConfig defines the language model provider settings.
type LLMConfig struct {
	// APIKey for the provider. Usually supplied via environment.
	APIKey string `json:"api_key,omitempty"`

	// APIKeyEnvVar names an environment variable holding the API key
	APIKeyEnvVar string `json:"api_key_env_var,omitempty"`

	// BaseURL of the chat completion API
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Model identifier sent with every request
	Model string `json:"model,omitempty"`

	// Temperature for sampling
	Temperature float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`

	// MaxTokens caps the response length
	MaxTokens int `json:"max_tokens,omitempty" validate:"gte=0"`

	// Timeout per HTTP request
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries bounds attempts per logical call
	MaxRetries int `json:"max_retries,omitempty" validate:"gte=0,lte=10"`
}

// AIServiceConfig defines the downstream analytics service settings.
type AIServiceConfig struct {
	// BaseURL of the analytics service
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Timeout per HTTP request
	Timeout time.Duration `json:"timeout,omitempty"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit breaker
	FailureThreshold int `json:"failure_threshold,omitempty" validate:"gte=0"`

	// RecoveryTimeout is how long the breaker stays open before probing
	RecoveryTimeout time.Duration `json:"recovery_timeout,omitempty"`
}

// DatabaseConfig defines persistence settings.
type DatabaseConfig struct {
	// Path to the SQLite database file
	Path string `json:"path,omitempty"`

	// MaxHistory is the number of recent messages included in model context
	MaxHistory int `json:"max_history,omitempty" validate:"gte=0"`
}

// EngineConfig defines orchestration loop settings.
type EngineConfig struct {
	// MaxIterations bounds model calls per turn
	MaxIterations int `json:"max_iterations,omitempty" validate:"gte=0,lte=25"`

	// TurnTimeout bounds a whole turn's wall clock
	TurnTimeout time.Duration `json:"turn_timeout,omitempty"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"omitempty,log_level"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"omitempty,log_format"`
}
