package convstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodflow/copilot/src/llm"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db, nil, opts...)
}

func strPtr(s string) *string { return &s }

func TestConversationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenantID := uuid.New()
	userID := uuid.New()

	conv, err := store.CreateConversation(ctx, tenantID, userID, "plantops")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tenantID.String(), got.TenantID)
	assert.Equal(t, userID.String(), got.UserID)
	assert.Equal(t, "plantops", got.Workspace)
}

func TestGetConversationNotFound(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetConversation(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddMessageAndHistoryOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "fsq")
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := store.AddMessage(ctx, AddMessageParams{
			ConversationID: conv.ID,
			Role:           llm.RoleUser,
			Content:        strPtr(content),
		})
		require.NoError(t, err)
	}

	messages, err := store.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", *messages[0].Content)
	assert.Equal(t, "second", *messages[1].Content)
	assert.Equal(t, "third", *messages[2].Content)
}

func TestAddMessagePersistsFunctionCall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "plantops")
	require.NoError(t, err)

	fc := &llm.FunctionCall{
		Name:      "get_line_status",
		Arguments: json.RawMessage(`{"line_id":"L1"}`),
	}
	msg, err := store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID,
		Role:           llm.RoleAssistant,
		ToolsUsed:      []string{"get_line_status"},
		FunctionCall:   fc,
	})
	require.NoError(t, err)
	assert.Nil(t, msg.Content)

	messages, err := store.GetMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	decoded, err := messages[0].DecodeFunctionCall()
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, "get_line_status", decoded.Name)
	assert.JSONEq(t, `{"line_id":"L1"}`, string(decoded.Arguments))
	assert.Equal(t, JSONStringArray{"get_line_status"}, messages[0].ToolsUsed)
}

func TestAddMessageBumpsUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "retail")
	require.NoError(t, err)

	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID,
		Role:           llm.RoleUser,
		Content:        strPtr("hello"),
	})
	require.NoError(t, err)

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(conv.UpdatedAt) || got.UpdatedAt.Equal(conv.UpdatedAt))
	assert.False(t, got.UpdatedAt.Before(conv.UpdatedAt))
}

func TestBuildContextWindowsHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "planning")
	require.NoError(t, err)

	contents := []string{
		"m01", "m02", "m03", "m04", "m05", "m06", "m07",
		"m08", "m09", "m10", "m11", "m12", "m13", "m14",
	}
	for _, content := range contents {
		_, err := store.AddMessage(ctx, AddMessageParams{
			ConversationID: conv.ID,
			Role:           llm.RoleUser,
			Content:        strPtr(content),
		})
		require.NoError(t, err)
	}

	window, err := store.BuildContext(ctx, conv.ID, "you are a planner")
	require.NoError(t, err)

	// System prompt plus the last 10 messages, oldest first.
	require.Len(t, window, 11)
	assert.Equal(t, llm.RoleSystem, window[0].Role)
	assert.Equal(t, "you are a planner", window[0].Content)
	assert.Equal(t, "m05", window[1].Content)
	assert.Equal(t, "m14", window[10].Content)
}

func TestBuildContextSetsFunctionName(t *testing.T) {
	store := newTestStore(t, WithMaxHistory(5))
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "fsq")
	require.NoError(t, err)

	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID,
		Role:           llm.RoleFunction,
		Content:        strPtr(`{"success":true}`),
		ToolsUsed:      []string{"compute_lot_risk"},
	})
	require.NoError(t, err)

	window, err := store.BuildContext(ctx, conv.ID, "sys")
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, llm.RoleFunction, window[1].Role)
	assert.Equal(t, "compute_lot_risk", window[1].Name)
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID := uuid.New()

	first, err := store.CreateConversation(ctx, tenantID, uuid.New(), "plantops")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, tenantID, uuid.New(), "fsq")
	require.NoError(t, err)

	// Touching the older conversation moves it to the front.
	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: first.ID,
		Role:           llm.RoleUser,
		Content:        strPtr("bump"),
	})
	require.NoError(t, err)

	conversations, err := store.ListConversations(ctx, tenantID, 10)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, first.ID, conversations[0].ID)
	assert.Equal(t, second.ID, conversations[1].ID)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "brand")
	require.NoError(t, err)

	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID, Role: llm.RoleUser, Content: strPtr("q"),
	})
	require.NoError(t, err)
	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID, Role: llm.RoleFunction,
		Content: strPtr("{}"), ToolsUsed: []string{"evaluate_copacker"},
	})
	require.NoError(t, err)
	_, err = store.AddMessage(ctx, AddMessageParams{
		ConversationID: conv.ID, Role: llm.RoleAssistant, Content: strPtr("a"),
		ToolsUsed: []string{"evaluate_copacker"}, TokensUsed: 321,
	})
	require.NoError(t, err)

	stats, err := store.Stats(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MessageCount)
	assert.Equal(t, 321, stats.TotalTokens)
	assert.Equal(t, []string{"evaluate_copacker", "evaluate_copacker"}, stats.ToolCalls)
	assert.Equal(t, []string{"evaluate_copacker"}, stats.UniqueTools)
}

func TestInsertTelemetry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.InsertTelemetry(ctx, &TelemetryRow{
		TenantID:       uuid.New().String(),
		UserID:         uuid.New().String(),
		Workspace:      "plantops",
		ConversationID: uuid.New().String(),
		Question:       "why is line 2 slow?",
		Answer:         "because of changeovers",
		ToolsUsed:      JSONStringArray{"get_line_status"},
		TokensUsed:     512,
		DurationMs:     842.5,
	})
	require.NoError(t, err)
}

func TestRecordFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, uuid.New(), uuid.New(), "retail")
	require.NoError(t, err)

	require.NoError(t, store.RecordFeedback(ctx, conv.ID, nil, 4, "helpful"))

	err = store.RecordFeedback(ctx, conv.ID, nil, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating must be between 1 and 5")

	err = store.RecordFeedback(ctx, conv.ID, nil, 6, "")
	require.Error(t, err)
}

func TestJSONStringArrayScanValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  JSONStringArray
	}{
		{"nil", nil, JSONStringArray{}},
		{"empty string", "", JSONStringArray{}},
		{"empty array", "[]", JSONStringArray{}},
		{"values", `["a","b"]`, JSONStringArray{"a", "b"}},
		{"bytes", []byte(`["x"]`), JSONStringArray{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got JSONStringArray
			require.NoError(t, got.Scan(tt.input))
			assert.Equal(t, tt.want, got)
		})
	}

	v, err := JSONStringArray{"a"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, v)

	v, err = JSONStringArray{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
