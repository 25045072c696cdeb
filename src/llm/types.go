// Package llm defines the normalized chat-completion types shared by the
// provider client and the orchestration engine.
package llm

import (
	"context"
	"encoding/json"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Message roles recognized by the engine and the conversation store.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Message represents a single message in a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name identifies the function for role "function" messages.
	Name string `json:"name,omitempty"`
	// FunctionCall carries the tool invocation on assistant messages that
	// request a tool instead of answering.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// MarshalJSON encodes content as null on pure tool-call messages, the shape
// chat completion APIs expect on the wire.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role         string        `json:"role"`
		Content      *string       `json:"content"`
		Name         string        `json:"name,omitempty"`
		FunctionCall *FunctionCall `json:"function_call,omitempty"`
	}
	w := wire{Role: m.Role, Name: m.Name, FunctionCall: m.FunctionCall}
	if m.Content != "" || m.FunctionCall == nil {
		content := m.Content
		w.Content = &content
	}
	return json.Marshal(w)
}

// FunctionCall contains the function name and raw JSON arguments as the
// provider produced them.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MarshalJSON encodes the arguments as a JSON string, the shape chat
// completion APIs use on the wire.
func (f FunctionCall) MarshalJSON() ([]byte, error) {
	args := string(f.Arguments)
	if args == "" {
		args = "{}"
	}
	return json.Marshal(struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	}{Name: f.Name, Arguments: args})
}

// UnmarshalJSON accepts arguments both as a string-encoded JSON document
// (the wire shape) and as a plain JSON object.
func (f *FunctionCall) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	f.Name = wire.Name
	args := wire.Arguments
	if len(args) > 0 && args[0] == '"' {
		var inner string
		if err := json.Unmarshal(args, &inner); err != nil {
			return err
		}
		args = json.RawMessage(inner)
	}
	f.Arguments = args
	return nil
}

// FunctionDef is a tool declaration in the format expected by chat
// completion APIs. Only name, description and the parameter schema are ever
// exposed to the model.
type FunctionDef struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Function-call policies for ChatRequest.FunctionCall.
const (
	FunctionCallAuto = "auto"
	FunctionCallNone = "none"
)

// ChatRequest represents a request to the chat completions endpoint.
type ChatRequest struct {
	Model        string         `json:"model"`
	Messages     []*Message     `json:"messages"`
	Temperature  *float64       `json:"temperature,omitempty"`
	MaxTokens    *int           `json:"max_tokens,omitempty"`
	Functions    []*FunctionDef `json:"functions,omitempty"`
	FunctionCall string         `json:"function_call,omitempty"`
}

// Usage represents token usage reported by the provider. It is populated on
// every completion so callers can account cost per call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Finish reasons surfaced in ChatResponse.FinishReason.
const (
	FinishStop         = "stop"
	FinishFunctionCall = "function_call"
	FinishLength       = "length"
)

// ChatResponse is the normalized result of one chat-completion call.
type ChatResponse struct {
	Message      Message       `json:"message"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Usage        Usage         `json:"usage"`
	FinishReason string        `json:"finish_reason"`
}

// WantsTool reports whether the model requested a tool invocation instead of
// producing a final answer.
func (r *ChatResponse) WantsTool() bool {
	return r.FinishReason == FinishFunctionCall && r.FunctionCall != nil
}

// Provider issues chat-completion calls against an opaque model backend.
type Provider interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
