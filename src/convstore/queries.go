package convstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

// CreateConversation inserts a new conversation. An empty ID and zero
// timestamps are filled in.
func CreateConversation(ctx context.Context, db Execer, conv *Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	query := `INSERT INTO copilot_conversations (id, tenant_id, user_id, workspace, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, conv.ID, conv.TenantID, conv.UserID, conv.Workspace, conv.CreatedAt, conv.UpdatedAt)
	return err
}

// GetConversationByID retrieves a conversation by its ID. Returns nil when
// not found.
func GetConversationByID(ctx context.Context, db sqlscan.Querier, id string) (*Conversation, error) {
	query := `SELECT id, tenant_id, user_id, workspace, created_at, updated_at FROM copilot_conversations WHERE id = ?`
	var conv Conversation
	err := sqlscan.Get(ctx, db, &conv, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns a tenant's conversations, most recently updated
// first.
func ListConversations(ctx context.Context, db sqlscan.Querier, tenantID string, limit int) ([]Conversation, error) {
	query := `SELECT id, tenant_id, user_id, workspace, created_at, updated_at FROM copilot_conversations WHERE tenant_id = ? ORDER BY updated_at DESC LIMIT ?`
	var out []Conversation
	if err := sqlscan.Select(ctx, db, &out, query, tenantID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMessage inserts a message and bumps the conversation's updated_at.
func CreateMessage(ctx context.Context, db Execer, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.ToolsUsed == nil {
		msg.ToolsUsed = JSONStringArray{}
	}

	query := `INSERT INTO copilot_messages (id, conversation_id, role, content, tools_used, tokens_used, function_call, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.ToolsUsed, msg.TokensUsed, msg.FunctionCall, msg.CreatedAt); err != nil {
		return err
	}

	touch := `UPDATE copilot_conversations SET updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, touch, msg.CreatedAt, msg.ConversationID)
	return err
}

// GetMessagesByConversationID retrieves all messages for a conversation
// ordered by creation time.
func GetMessagesByConversationID(ctx context.Context, db sqlscan.Querier, conversationID string) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, tools_used, tokens_used, function_call, created_at FROM copilot_messages WHERE conversation_id = ? ORDER BY created_at, id`
	var messages []Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetRecentMessages retrieves the last limit messages for a conversation in
// chronological order. Older messages are never deleted, only excluded from
// the window.
func GetRecentMessages(ctx context.Context, db sqlscan.Querier, conversationID string, limit int) ([]Message, error) {
	query := `SELECT id, conversation_id, role, content, tools_used, tokens_used, function_call, created_at FROM copilot_messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	var messages []Message
	if err := sqlscan.Select(ctx, db, &messages, query, conversationID, limit); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
