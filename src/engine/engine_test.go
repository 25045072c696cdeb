package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodflow/copilot/src/convstore"
	"github.com/foodflow/copilot/src/llm"
	"github.com/foodflow/copilot/src/toolreg"
)

// scriptedProvider replays a fixed sequence of responses. Once the script is
// exhausted it keeps returning the last response.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

// blockingProvider hangs until the turn deadline fires, like a model call
// that outlives the budget.
type blockingProvider struct{}

func (p *blockingProvider) ChatCompletion(ctx context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type errProvider struct{ err error }

func (p *errProvider) ChatCompletion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, p.err
}

type captureSink struct {
	records []*TelemetryRecord
	err     error
}

func (s *captureSink) RecordTurn(_ context.Context, rec *TelemetryRecord) error {
	s.records = append(s.records, rec)
	return s.err
}

func toolResp(name, args string, tokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		FunctionCall: &llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)},
		FinishReason: llm.FinishFunctionCall,
		Usage:        llm.Usage{TotalTokens: tokens},
	}
}

func finalResp(content string, tokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		FinishReason: llm.FinishStop,
		Usage:        llm.Usage{TotalTokens: tokens},
	}
}

func newTestRegistry(t *testing.T) *toolreg.Registry {
	t.Helper()
	registry := toolreg.NewRegistry(nil)
	for _, name := range []string{"get_line_status", "get_money_leaks"} {
		name := name
		registry.Register(&toolreg.Tool{
			Name:      name,
			Workspace: "plantops",
			Handler: func(_ context.Context, _ toolreg.ExecContext, _ json.RawMessage) (any, error) {
				return map[string]any{"tool": name}, nil
			},
		})
	}
	return registry
}

func newTestEngine(t *testing.T, provider llm.Provider, opts ...Option) (*Engine, *convstore.Store, *captureSink) {
	t.Helper()

	db, err := convstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := convstore.NewStore(db, nil)

	sink := &captureSink{}
	eng := New(newTestRegistry(t), store, provider, sink, nil, opts...)
	return eng, store, sink
}

func testRequest() *Request {
	return &Request{
		TenantID:  uuid.New(),
		UserID:    uuid.New(),
		Workspace: "plantops",
		Message:   "how is line L1 doing?",
		Context:   map[string]any{"line_id": "L1"},
	}
}

func TestChatToolChain(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResp("get_money_leaks", `{}`, 10),
		toolResp("get_line_status", `{"line_id":"L1"}`, 20),
		finalResp("Line L1 is running at 94% efficiency.", 30),
	}}
	eng, store, sink := newTestEngine(t, provider)

	resp, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Line L1 is running at 94% efficiency.", resp.Answer)
	assert.Equal(t, []string{"get_money_leaks", "get_line_status"}, resp.ToolsUsed)
	assert.Equal(t, 60, resp.TokensUsed, "tokens accumulate across every model call")
	assert.NotEmpty(t, resp.ConversationID)

	// Links come back in table order, with context substitution.
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, ActionLink{Label: "View Line Details", URL: "/plant-ops/lines/L1", Icon: "line-chart"}, resp.Actions[0])
	assert.Equal(t, "View Money Leaks Dashboard", resp.Actions[1].Label)

	// Every step of the turn is durable, in order.
	messages, err := store.GetMessages(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{
		llm.RoleUser,
		llm.RoleAssistant, llm.RoleFunction,
		llm.RoleAssistant, llm.RoleFunction,
		llm.RoleAssistant,
	}, roles)

	require.Len(t, sink.records, 1)
	assert.False(t, sink.records[0].Aborted)
	assert.Equal(t, 60, sink.records[0].TokensUsed)
	assert.Equal(t, resp.ConversationID, sink.records[0].ConversationID)
}

func TestChatExposesWorkspaceFunctions(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("ok", 5)}}
	eng, _, _ := newTestEngine(t, provider)

	_, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	assert.Len(t, provider.requests[0].Functions, 2)
	assert.Equal(t, llm.FunctionCallAuto, provider.requests[0].FunctionCall)
}

func TestChatInvalidWorkspace(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("never", 0)}}
	eng, _, _ := newTestEngine(t, provider)

	req := testRequest()
	req.Workspace = "warehouse"

	_, err := eng.Chat(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), `invalid workspace "warehouse"`)
	assert.Empty(t, provider.requests, "no model call for an invalid workspace")
}

func TestChatConversationNotFound(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("never", 0)}}
	eng, _, _ := newTestEngine(t, provider)

	req := testRequest()
	req.ConversationID = uuid.New().String()

	_, err := eng.Chat(context.Background(), req)
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestChatContinuesExistingConversation(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("continued", 5)}}
	eng, store, _ := newTestEngine(t, provider)

	req := testRequest()
	conv, err := store.CreateConversation(context.Background(), req.TenantID, req.UserID, req.Workspace)
	require.NoError(t, err)
	req.ConversationID = conv.ID

	resp, err := eng.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, resp.ConversationID)

	messages, err := store.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestChatMaxIterationsAbort(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResp("get_line_status", `{}`, 7),
	}}
	eng, store, sink := newTestEngine(t, provider)

	resp, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Len(t, provider.requests, DefaultMaxIterations)
	assert.Equal(t, abortAnswer, resp.Answer)
	assert.Nil(t, resp.Actions, "an aborted turn carries no action links")
	assert.Len(t, resp.ToolsUsed, DefaultMaxIterations)
	assert.Equal(t, 7*DefaultMaxIterations, resp.TokensUsed)

	require.Len(t, sink.records, 1)
	assert.True(t, sink.records[0].Aborted)

	// The apology is persisted like any other assistant answer.
	messages, err := store.GetMessages(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	last := messages[len(messages)-1]
	require.NotNil(t, last.Content)
	assert.Equal(t, abortAnswer, *last.Content)
}

func TestChatUnknownToolFedBackToModel(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolResp("nonexistent_tool", `{}`, 5),
		finalResp("I could not look that up.", 5),
	}}
	eng, store, _ := newTestEngine(t, provider)

	resp, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "I could not look that up.", resp.Answer)
	assert.Equal(t, []string{"nonexistent_tool"}, resp.ToolsUsed)

	// The failure travels back as a function-result payload.
	messages, err := store.GetMessages(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	var functionMsg *string
	for i := range messages {
		if messages[i].Role == llm.RoleFunction {
			functionMsg = messages[i].Content
		}
	}
	require.NotNil(t, functionMsg)
	assert.Contains(t, *functionMsg, `"success":false`)
	assert.Contains(t, *functionMsg, "not found")
}

func TestChatTurnBudgetExhausted(t *testing.T) {
	eng, store, sink := newTestEngine(t, &blockingProvider{}, WithTurnTimeout(25*time.Millisecond))

	req := testRequest()
	conv, err := store.CreateConversation(context.Background(), req.TenantID, req.UserID, req.Workspace)
	require.NoError(t, err)
	req.ConversationID = conv.ID

	_, err = eng.Chat(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.False(t, IsClientError(err))

	// No answer was produced, so none is persisted and no telemetry emitted.
	messages, err := store.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	for _, m := range messages {
		assert.NotEqual(t, llm.RoleAssistant, m.Role)
	}
	assert.Empty(t, sink.records)
}

func TestChatDurationFromInjectedClock(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("ok", 5)}}

	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ticks := 0
	clock := func() time.Time {
		ticks++
		if ticks == 1 {
			return base
		}
		return base.Add(250 * time.Millisecond)
	}
	eng, _, sink := newTestEngine(t, provider, WithClock(clock))

	resp, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 250.0, resp.DurationMs)

	require.Len(t, sink.records, 1)
	assert.Equal(t, 250.0, sink.records[0].DurationMs)
}

func TestChatUsesConfiguredPromptSource(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("ok", 5)}}
	eng, _, _ := newTestEngine(t, provider, WithPromptSource(func(workspace string) string {
		return "you are the " + workspace + " assistant"
	}))

	_, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)

	require.NotEmpty(t, provider.requests)
	first := provider.requests[0].Messages[0]
	assert.Equal(t, llm.RoleSystem, first.Role)
	assert.Equal(t, "you are the plantops assistant", first.Content)
}

func TestChatProviderErrorIsInternal(t *testing.T) {
	eng, _, sink := newTestEngine(t, &errProvider{err: errors.New("upstream down")})

	_, err := eng.Chat(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.False(t, IsClientError(err))
	assert.Empty(t, sink.records, "no telemetry for a failed turn")
}

func TestChatTelemetryFailureIsNonFatal(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{finalResp("fine", 5)}}
	eng, _, sink := newTestEngine(t, provider)
	sink.err = errors.New("sink unavailable")

	resp, err := eng.Chat(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Answer)
	assert.Len(t, sink.records, 1)
}
