package convstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foodflow/copilot/src/llm"
)

// Conversation is a chat thread between a user and the copilot within one
// workspace. The workspace is immutable after creation.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Workspace string    `json:"workspace" db:"workspace"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one turn event in a conversation. Content is null for pure
// tool-call messages; FunctionCall holds the call payload as JSON.
type Message struct {
	ID             string          `json:"id" db:"id"`
	ConversationID string          `json:"conversation_id" db:"conversation_id"`
	Role           string          `json:"role" db:"role"`
	Content        *string         `json:"content,omitempty" db:"content"`
	ToolsUsed      JSONStringArray `json:"tools_used" db:"tools_used"`
	TokensUsed     int             `json:"tokens_used" db:"tokens_used"`
	FunctionCall   *string         `json:"function_call,omitempty" db:"function_call"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// DecodeFunctionCall parses the stored function-call payload, if any.
func (m *Message) DecodeFunctionCall() (*llm.FunctionCall, error) {
	if m.FunctionCall == nil || *m.FunctionCall == "" {
		return nil, nil
	}
	var fc llm.FunctionCall
	if err := json.Unmarshal([]byte(*m.FunctionCall), &fc); err != nil {
		return nil, fmt.Errorf("failed to decode function call: %w", err)
	}
	return &fc, nil
}

// ConversationStats summarizes a conversation's history.
type ConversationStats struct {
	MessageCount int      `json:"message_count"`
	TotalTokens  int      `json:"total_tokens"`
	ToolCalls    []string `json:"tool_calls"`
	UniqueTools  []string `json:"unique_tools"`
}

// JSONStringArray is a custom type for handling JSON arrays stored as text
// in the database.
type JSONStringArray []string

// Scan implements the sql.Scanner interface for JSONStringArray.
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = []string{}
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" || v == "[]" {
			*j = []string{}
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	case []byte:
		if len(v) == 0 || string(v) == "[]" {
			*j = []string{}
			return nil
		}
		return json.Unmarshal(v, j)
	default:
		return fmt.Errorf("cannot scan type %T into JSONStringArray", value)
	}
}

// Value implements the driver.Valuer interface for JSONStringArray.
func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
