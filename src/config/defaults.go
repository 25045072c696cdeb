package config

import (
	"time"
)

// DefaultConfig returns the built-in configuration. File and environment
// sources override it field by field.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		LLM: LLMConfig{
			APIKeyEnvVar: "OPENAI_API_KEY",
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4-turbo-preview",
			Temperature:  0.2,
			MaxTokens:    1500,
			Timeout:      30 * time.Second,
			MaxRetries:   3,
		},
		AIService: AIServiceConfig{
			BaseURL:          "http://localhost:8001",
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:       "copilot.db",
			MaxHistory: 10,
		},
		Engine: EngineConfig{
			MaxIterations: 5,
			TurnTimeout:   60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
