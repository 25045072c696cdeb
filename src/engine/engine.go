// Package engine implements the copilot orchestration loop: it turns one
// user request into zero or more tool invocations plus a synthesized final
// answer, under bounded iteration and an overall wall-clock budget.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foodflow/copilot/src/convstore"
	"github.com/foodflow/copilot/src/llm"
	"github.com/foodflow/copilot/src/prompts"
	"github.com/foodflow/copilot/src/toolreg"
)

const (
	// DefaultMaxIterations bounds the number of model calls per turn.
	DefaultMaxIterations = 5
	// DefaultTurnTimeout bounds the whole turn's wall clock, independent of
	// per-call timeouts.
	DefaultTurnTimeout = 60 * time.Second
)

const abortAnswer = "I apologize, but I've reached the maximum number of steps for this request. " +
	"Please try rephrasing your question or breaking it into smaller parts."

// ErrInternal is the generic error surfaced to callers when anything other
// than a client mistake fails a turn. Full detail stays in the logs.
var ErrInternal = errors.New("internal copilot error")

// ClientError marks request mistakes the caller can fix: unknown workspace,
// missing conversation. No model call is attempted for these.
type ClientError struct {
	Msg string
}

func (e *ClientError) Error() string {
	return e.Msg
}

// IsClientError reports whether err is a caller mistake rather than an
// internal failure.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// turnState tracks where the loop is; used for log context only.
type turnState int

const (
	stateValidating turnState = iota
	stateLoadingContext
	stateAwaitingLLM
	stateExecutingTool
	stateFinalizing
	stateAbortedMaxIterations
)

func (s turnState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateLoadingContext:
		return "loading_context"
	case stateAwaitingLLM:
		return "awaiting_llm"
	case stateExecutingTool:
		return "executing_tool"
	case stateFinalizing:
		return "finalizing"
	case stateAbortedMaxIterations:
		return "aborted_max_iterations"
	default:
		return "unknown"
	}
}

// Request is one user turn.
type Request struct {
	TenantID       uuid.UUID
	UserID         uuid.UUID
	Workspace      string
	Message        string
	ConversationID string
	// Context carries caller-supplied entity IDs and filters, passed through
	// to tools and action-link rendering.
	Context map[string]any
}

// Response is the outcome of one turn.
type Response struct {
	ConversationID string       `json:"conversation_id"`
	Answer         string       `json:"answer"`
	Actions        []ActionLink `json:"actions"`
	ToolsUsed      []string     `json:"tools_used"`
	TokensUsed     int          `json:"tokens_used"`
	DurationMs     float64      `json:"duration_ms"`
}

// Engine drives the orchestration loop. Construct one at startup and share
// it; all state lives in its collaborators.
type Engine struct {
	registry  *toolreg.Registry
	store     *convstore.Store
	provider  llm.Provider
	telemetry TelemetrySink
	logger    *slog.Logger

	maxIterations int
	turnTimeout   time.Duration
	promptFor     func(workspace string) string
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations overrides the model-call bound per turn.
func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

// WithTurnTimeout overrides the overall wall-clock budget per turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.turnTimeout = d }
}

// WithPromptSource overrides where system prompts come from.
func WithPromptSource(fn func(workspace string) string) Option {
	return func(e *Engine) { e.promptFor = fn }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(registry *toolreg.Registry, store *convstore.Store, provider llm.Provider, telemetry TelemetrySink, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = NewLogSink(logger)
	}
	e := &Engine{
		registry:      registry,
		store:         store,
		provider:      provider,
		telemetry:     telemetry,
		logger:        logger.With("component", "engine"),
		maxIterations: DefaultMaxIterations,
		turnTimeout:   DefaultTurnTimeout,
		promptFor:     prompts.SystemPrompt,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Chat runs one turn. Client mistakes come back as *ClientError; everything
// else is logged in full and surfaced as ErrInternal.
func (e *Engine) Chat(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("panic in orchestration loop", "panic", rec, "workspace", req.Workspace)
			resp, err = nil, ErrInternal
		}
	}()

	resp, err = e.run(ctx, req)
	if err != nil && !IsClientError(err) {
		e.logger.Error("turn failed", "workspace", req.Workspace, "error", err)
		return nil, ErrInternal
	}
	return resp, err
}

func (e *Engine) run(ctx context.Context, req *Request) (*Response, error) {
	start := e.now()
	logger := e.logger.With("workspace", req.Workspace, "tenant_id", req.TenantID.String())
	logger.Debug("turn started", "state", stateValidating.String())

	if !e.registry.HasWorkspace(req.Workspace) {
		return nil, &ClientError{Msg: fmt.Sprintf("invalid workspace %q", req.Workspace)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	conv, err := e.loadOrCreateConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	logger = logger.With("conversation_id", conv.ID)

	// The user message is durable before the first model call.
	if _, err := e.store.AddMessage(ctx, convstore.AddMessageParams{
		ConversationID: conv.ID,
		Role:           llm.RoleUser,
		Content:        &req.Message,
	}); err != nil {
		return nil, err
	}

	logger.Debug("building context", "state", stateLoadingContext.String())
	messages, err := e.store.BuildContext(ctx, conv.ID, e.promptFor(req.Workspace))
	if err != nil {
		return nil, err
	}

	functions := e.registry.WorkspaceFunctions(req.Workspace)
	policy := llm.FunctionCallNone
	if len(functions) > 0 {
		policy = llm.FunctionCallAuto
	}

	var toolsUsed []string
	totalTokens := 0

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		// The outer deadline bounds the turn even when every individual
		// call eventually succeeds.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn budget exhausted: %w", err)
		}

		logger.Debug("calling model", "state", stateAwaitingLLM.String(), "iteration", iteration)
		chatResp, err := e.provider.ChatCompletion(ctx, &llm.ChatRequest{
			Messages:     messages,
			Functions:    functions,
			FunctionCall: policy,
		})
		if err != nil {
			return nil, err
		}
		totalTokens += chatResp.Usage.TotalTokens

		if chatResp.WantsTool() {
			fc := chatResp.FunctionCall
			logger.Info("model requested tool", "state", stateExecutingTool.String(), "tool", fc.Name, "iteration", iteration)
			toolsUsed = append(toolsUsed, fc.Name)

			messages, err = e.executeTool(ctx, conv.ID, req, fc, messages)
			if err != nil {
				return nil, err
			}
			continue
		}

		// Final answer.
		logger.Debug("finalizing", "state", stateFinalizing.String(), "iteration", iteration)
		answer := chatResp.Message.Content
		if _, err := e.store.AddMessage(ctx, convstore.AddMessageParams{
			ConversationID: conv.ID,
			Role:           llm.RoleAssistant,
			Content:        &answer,
			ToolsUsed:      toolsUsed,
			TokensUsed:     totalTokens,
		}); err != nil {
			return nil, err
		}

		durationMs := float64(e.now().Sub(start)) / float64(time.Millisecond)
		e.emitTelemetry(ctx, req, conv.ID, answer, toolsUsed, totalTokens, durationMs, false)

		return &Response{
			ConversationID: conv.ID,
			Answer:         answer,
			Actions:        ActionLinks(req.Workspace, toolsUsed, req.Context),
			ToolsUsed:      toolsUsed,
			TokensUsed:     totalTokens,
			DurationMs:     durationMs,
		}, nil
	}

	// The model still wants tools after the last allowed call. A normal
	// terminal state, not an error: apologize without actions.
	logger.Warn("max iterations reached", "state", stateAbortedMaxIterations.String(), "tools_used", toolsUsed)

	answer := abortAnswer
	if _, err := e.store.AddMessage(ctx, convstore.AddMessageParams{
		ConversationID: conv.ID,
		Role:           llm.RoleAssistant,
		Content:        &answer,
		ToolsUsed:      toolsUsed,
		TokensUsed:     totalTokens,
	}); err != nil {
		return nil, err
	}

	durationMs := float64(e.now().Sub(start)) / float64(time.Millisecond)
	e.emitTelemetry(ctx, req, conv.ID, answer, toolsUsed, totalTokens, durationMs, true)

	return &Response{
		ConversationID: conv.ID,
		Answer:         answer,
		ToolsUsed:      toolsUsed,
		TokensUsed:     totalTokens,
		DurationMs:     durationMs,
	}, nil
}

func (e *Engine) loadOrCreateConversation(ctx context.Context, req *Request) (*convstore.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := e.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, &ClientError{Msg: fmt.Sprintf("conversation %q not found", req.ConversationID)}
		}
		return conv, nil
	}
	return e.store.CreateConversation(ctx, req.TenantID, req.UserID, req.Workspace)
}

// executeTool persists the assistant's tool-call message, runs the tool,
// persists the function-result message and returns the extended in-memory
// context. Tool failures come back inside the result payload; the model
// reacts to them on the next call.
func (e *Engine) executeTool(ctx context.Context, conversationID string, req *Request, fc *llm.FunctionCall, messages []*llm.Message) ([]*llm.Message, error) {
	if _, err := e.store.AddMessage(ctx, convstore.AddMessageParams{
		ConversationID: conversationID,
		Role:           llm.RoleAssistant,
		ToolsUsed:      []string{fc.Name},
		FunctionCall:   fc,
	}); err != nil {
		return nil, err
	}

	result := e.registry.Execute(ctx, fc.Name, fc.Arguments, toolreg.ExecContext{
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Workspace: req.Workspace,
		DB:        e.store.DB().DB(),
		Request:   req.Context,
	})

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	resultText := string(resultJSON)

	if _, err := e.store.AddMessage(ctx, convstore.AddMessageParams{
		ConversationID: conversationID,
		Role:           llm.RoleFunction,
		Content:        &resultText,
		ToolsUsed:      []string{fc.Name},
	}); err != nil {
		return nil, err
	}

	messages = append(messages,
		&llm.Message{Role: llm.RoleAssistant, FunctionCall: fc},
		&llm.Message{Role: llm.RoleFunction, Name: fc.Name, Content: resultText},
	)
	return messages, nil
}

func (e *Engine) emitTelemetry(ctx context.Context, req *Request, conversationID, answer string, toolsUsed []string, tokens int, durationMs float64, aborted bool) {
	rec := &TelemetryRecord{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		Workspace:      req.Workspace,
		ConversationID: conversationID,
		Question:       req.Message,
		Answer:         answer,
		ToolsUsed:      toolsUsed,
		TokensUsed:     tokens,
		DurationMs:     durationMs,
		Aborted:        aborted,
	}
	if err := e.telemetry.RecordTurn(ctx, rec); err != nil {
		e.logger.Warn("failed to record telemetry", "error", err)
	}
}
