package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every environment override variable.
const EnvPrefix = "COPILOT_"

// Loader loads configuration from an optional file, applies environment
// overrides, and validates the result.
type Loader struct {
	validator *Validator
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{validator: NewValidator()}
}

// Load builds the effective configuration. path may be empty, in which case
// only defaults and environment overrides apply. A named file that does not
// exist is an error; the implicit default path is allowed to be missing.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		fileCfg, err := l.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config = mergeConfigs(config, fileCfg)
	}

	l.applyEnvironmentOverrides(config)

	if config.LLM.APIKey == "" && config.LLM.APIKeyEnvVar != "" {
		config.LLM.APIKey = os.Getenv(config.LLM.APIKeyEnvVar)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &config, nil
}

// mergeConfigs merges two configurations with the second taking precedence.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	if override.LLM.APIKey != "" {
		result.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.APIKeyEnvVar != "" {
		result.LLM.APIKeyEnvVar = override.LLM.APIKeyEnvVar
	}
	if override.LLM.BaseURL != "" {
		result.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.Model != "" {
		result.LLM.Model = override.LLM.Model
	}
	if override.LLM.Temperature != 0 {
		result.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxTokens != 0 {
		result.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.Timeout != 0 {
		result.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.MaxRetries != 0 {
		result.LLM.MaxRetries = override.LLM.MaxRetries
	}

	if override.AIService.BaseURL != "" {
		result.AIService.BaseURL = override.AIService.BaseURL
	}
	if override.AIService.Timeout != 0 {
		result.AIService.Timeout = override.AIService.Timeout
	}
	if override.AIService.FailureThreshold != 0 {
		result.AIService.FailureThreshold = override.AIService.FailureThreshold
	}
	if override.AIService.RecoveryTimeout != 0 {
		result.AIService.RecoveryTimeout = override.AIService.RecoveryTimeout
	}

	if override.Database.Path != "" {
		result.Database.Path = override.Database.Path
	}
	if override.Database.MaxHistory != 0 {
		result.Database.MaxHistory = override.Database.MaxHistory
	}

	if override.Engine.MaxIterations != 0 {
		result.Engine.MaxIterations = override.Engine.MaxIterations
	}
	if override.Engine.TurnTimeout != 0 {
		result.Engine.TurnTimeout = override.Engine.TurnTimeout
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	if override.Debug {
		result.Debug = true
	}

	return &result
}

// applyEnvironmentOverrides maps COPILOT_* environment variables onto
// configuration fields. Environment wins over file values.
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("LLM_API_KEY", &config.LLM.APIKey)
	setString("LLM_BASE_URL", &config.LLM.BaseURL)
	setString("LLM_MODEL", &config.LLM.Model)
	setFloat("LLM_TEMPERATURE", &config.LLM.Temperature)
	setInt("LLM_MAX_TOKENS", &config.LLM.MaxTokens)
	setDuration("LLM_TIMEOUT", &config.LLM.Timeout)
	setInt("LLM_MAX_RETRIES", &config.LLM.MaxRetries)

	setString("AI_SERVICE_BASE_URL", &config.AIService.BaseURL)
	setDuration("AI_SERVICE_TIMEOUT", &config.AIService.Timeout)
	setInt("AI_SERVICE_FAILURE_THRESHOLD", &config.AIService.FailureThreshold)
	setDuration("AI_SERVICE_RECOVERY_TIMEOUT", &config.AIService.RecoveryTimeout)

	setString("DATABASE_PATH", &config.Database.Path)
	setInt("DATABASE_MAX_HISTORY", &config.Database.MaxHistory)

	setInt("ENGINE_MAX_ITERATIONS", &config.Engine.MaxIterations)
	setDuration("ENGINE_TURN_TIMEOUT", &config.Engine.TurnTimeout)

	setString("LOG_LEVEL", &config.Logging.Level)
	setString("LOG_FORMAT", &config.Logging.Format)

	if v := os.Getenv(EnvPrefix + "DEBUG"); v == "1" || v == "true" {
		config.Debug = true
	}
}
