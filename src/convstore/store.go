package convstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foodflow/copilot/src/llm"
)

// DefaultMaxHistory is the number of stored messages included in the
// context window for the next model call.
const DefaultMaxHistory = 10

// Store provides conversation persistence plus the context-window view used
// by the orchestration loop.
type Store struct {
	db         *DB
	maxHistory int
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxHistory overrides the context window size.
func WithMaxHistory(n int) StoreOption {
	return func(s *Store) { s.maxHistory = n }
}

// NewStore creates a Store over an open database.
func NewStore(db *DB, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:         db,
		maxHistory: DefaultMaxHistory,
		logger:     logger.With("component", "conversation_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the raw database handle for tool execution contexts.
func (s *Store) DB() *DB {
	return s.db
}

// CreateConversation starts a new conversation for a tenant/user in a
// workspace.
func (s *Store) CreateConversation(ctx context.Context, tenantID, userID uuid.UUID, workspace string) (*Conversation, error) {
	conv := &Conversation{
		TenantID:  tenantID.String(),
		UserID:    userID.String(),
		Workspace: workspace,
	}
	if err := CreateConversation(ctx, s.db.DB(), conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Info("created conversation",
		"conversation_id", conv.ID, "tenant_id", conv.TenantID, "workspace", workspace)
	return conv, nil
}

// GetConversation returns the conversation or nil when it does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return GetConversationByID(ctx, s.db.DB(), id)
}

// ListConversations returns a tenant's conversations, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]Conversation, error) {
	return ListConversations(ctx, s.db.DB(), tenantID.String(), limit)
}

// AddMessageParams carries one turn event to persist.
type AddMessageParams struct {
	ConversationID string
	Role           string
	Content        *string
	ToolsUsed      []string
	TokensUsed     int
	FunctionCall   *llm.FunctionCall
}

// AddMessage appends a message to a conversation and bumps its updated_at.
// Each append is an independent durable step.
func (s *Store) AddMessage(ctx context.Context, params AddMessageParams) (*Message, error) {
	msg := &Message{
		ConversationID: params.ConversationID,
		Role:           params.Role,
		Content:        params.Content,
		ToolsUsed:      JSONStringArray(params.ToolsUsed),
		TokensUsed:     params.TokensUsed,
	}
	if params.FunctionCall != nil {
		encoded, err := json.Marshal(params.FunctionCall)
		if err != nil {
			return nil, fmt.Errorf("failed to encode function call: %w", err)
		}
		text := string(encoded)
		msg.FunctionCall = &text
	}

	if err := CreateMessage(ctx, s.db.DB(), msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return msg, nil
}

// GetMessages returns the full message history in chronological order.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return GetMessagesByConversationID(ctx, s.db.DB(), conversationID)
}

// BuildContext returns the system prompt followed by the last maxHistory
// messages in chronological order. A pure windowing function over stored
// history; nothing is mutated.
func (s *Store) BuildContext(ctx context.Context, conversationID, systemPrompt string) ([]*llm.Message, error) {
	recent, err := GetRecentMessages(ctx, s.db.DB(), conversationID, s.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	out := make([]*llm.Message, 0, len(recent)+1)
	out = append(out, &llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	for i := range recent {
		m, err := formatForModel(&recent[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// formatForModel converts a stored message into the provider shape.
func formatForModel(msg *Message) (*llm.Message, error) {
	out := &llm.Message{Role: msg.Role}
	if msg.Content != nil {
		out.Content = *msg.Content
	}

	fc, err := msg.DecodeFunctionCall()
	if err != nil {
		return nil, err
	}
	out.FunctionCall = fc

	// Function-result messages need the tool name for the provider.
	if msg.Role == llm.RoleFunction && len(msg.ToolsUsed) > 0 {
		out.Name = msg.ToolsUsed[0]
	}
	return out, nil
}

// Stats summarizes message count, token total and tool usage for a
// conversation.
func (s *Store) Stats(ctx context.Context, conversationID string) (*ConversationStats, error) {
	messages, err := s.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stats := &ConversationStats{MessageCount: len(messages)}
	seen := make(map[string]bool)
	for _, msg := range messages {
		stats.TotalTokens += msg.TokensUsed
		for _, tool := range msg.ToolsUsed {
			stats.ToolCalls = append(stats.ToolCalls, tool)
			if !seen[tool] {
				seen[tool] = true
				stats.UniqueTools = append(stats.UniqueTools, tool)
			}
		}
	}
	return stats, nil
}

// TelemetryRow is one persisted record per completed or aborted turn.
type TelemetryRow struct {
	ID             string          `db:"id"`
	TenantID       string          `db:"tenant_id"`
	UserID         string          `db:"user_id"`
	Workspace      string          `db:"workspace"`
	ConversationID string          `db:"conversation_id"`
	Question       string          `db:"question"`
	Answer         string          `db:"answer"`
	ToolsUsed      JSONStringArray `db:"tools_used"`
	TokensUsed     int             `db:"tokens_used"`
	DurationMs     float64         `db:"duration_ms"`
	Aborted        bool            `db:"aborted"`
	CreatedAt      time.Time       `db:"created_at"`
}

// InsertTelemetry persists one turn record.
func (s *Store) InsertTelemetry(ctx context.Context, row *TelemetryRow) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.ToolsUsed == nil {
		row.ToolsUsed = JSONStringArray{}
	}

	query := `INSERT INTO copilot_telemetry (id, tenant_id, user_id, workspace, conversation_id, question, answer, tools_used, tokens_used, duration_ms, aborted, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.DB().ExecContext(ctx, query,
		row.ID, row.TenantID, row.UserID, row.Workspace, row.ConversationID,
		row.Question, row.Answer, row.ToolsUsed, row.TokensUsed, row.DurationMs, row.Aborted, row.CreatedAt)
	return err
}

// RecordFeedback stores a user rating (1..5) for a conversation, optionally
// tied to a specific message.
func (s *Store) RecordFeedback(ctx context.Context, conversationID string, messageID *string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}

	query := `INSERT INTO copilot_feedback (id, conversation_id, message_id, rating, feedback, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.DB().ExecContext(ctx, query,
		uuid.New().String(), conversationID, messageID, rating, feedback, time.Now().UTC())
	return err
}
