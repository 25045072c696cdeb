// Package llmclient implements the llm.Provider contract against an
// OpenAI-compatible chat-completions endpoint, with bounded retries and an
// optional circuit breaker around each call.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/foodflow/copilot/src/breaker"
	"github.com/foodflow/copilot/src/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4-turbo-preview"
	defaultTimeout = 30 * time.Second
)

var _ llm.Provider = (*Client)(nil)

// Client is the chat-completions API client.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *breaker.Breaker
}

// NewClient creates a new provider client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryPolicy()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With("component", "llm_client"),
		breaker:    config.Breaker,
	}
}

// wire types for the chat-completions endpoint.
type wireMessage struct {
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	Name         string            `json:"name,omitempty"`
	FunctionCall *llm.FunctionCall `json:"function_call,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   llm.Usage    `json:"usage"`
}

// ChatCompletion sends one chat-completion call and normalizes the result.
// Transient failures are retried per the configured policy; provider-side
// 4xx errors propagate immediately.
func (c *Client) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.config.Model
	}
	if r.Temperature == nil {
		r.Temperature = c.config.Temperature
	}
	if r.MaxTokens == nil {
		r.MaxTokens = c.config.MaxTokens
	}

	body, err := json.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger := c.logger.With("model", r.Model)
	logger.Debug("sending chat completion request", "messages", len(r.Messages), "functions", len(r.Functions))

	var result *llm.ChatResponse
	err = c.config.Retry.retry(ctx, logger, func() error {
		attempt := func() error {
			resp, err := c.doRequest(ctx, body)
			if err != nil {
				return err
			}
			result = resp
			return nil
		}
		if c.breaker != nil {
			return c.breaker.Call(attempt)
		}
		return attempt()
	})
	if err != nil {
		logger.Error("chat completion failed", "error", err)
		return nil, err
	}

	logger.Info("chat completion successful",
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
		"finish_reason", result.FinishReason)
	return result, nil
}

// doRequest performs a single HTTP attempt.
func (c *Client) doRequest(ctx context.Context, body []byte) (*llm.ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return normalize(&wire)
}

// handleError converts a non-200 response into an *APIError.
func (c *Client) handleError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RequestID:  resp.Header.Get("X-Request-ID"),
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
		Code:       errResp.Error.Code,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}
}

// normalize flattens the wire response into the engine-facing shape. Usage
// is surfaced on every call so the loop can account tokens per turn.
func normalize(wire *wireResponse) (*llm.ChatResponse, error) {
	if len(wire.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	choice := wire.Choices[0]

	out := &llm.ChatResponse{
		Message: llm.Message{
			Role:         choice.Message.Role,
			Content:      choice.Message.Content,
			FunctionCall: choice.Message.FunctionCall,
		},
		FunctionCall: choice.Message.FunctionCall,
		Usage:        wire.Usage,
		FinishReason: choice.FinishReason,
	}
	return out, nil
}
