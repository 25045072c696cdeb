// Package toolreg holds the tool registry: named capabilities with a
// JSON-schema parameter contract, scoped to a workspace and executed in
// isolation.
package toolreg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/foodflow/copilot/src/llm"
)

// ExecContext is passed to every tool invocation. DB is the shared
// persistence handle; Request carries caller-supplied context values such as
// entity IDs and filters.
type ExecContext struct {
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Workspace string
	DB        *sql.DB
	Request   map[string]any
}

// Handler executes a tool. Arguments arrive as the raw JSON object the model
// produced, already checked against the declared schema. Expected business
// failures should be returned as structured payloads, not errors.
type Handler func(ctx context.Context, ec ExecContext, args json.RawMessage) (any, error)

// Tool is a declared capability the model can invoke within its workspace.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Workspace   string
	Handler     Handler
}

// Result is the outcome of a tool execution. Tool failures never cross the
// registry boundary as errors; they are converted into Success=false.
type Result struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Registry maps tool names to tools and indexes them by workspace. It is
// written once at startup and read concurrently afterwards.
type Registry struct {
	mu             sync.RWMutex
	tools          map[string]*Tool
	workspaceTools map[string][]string
	logger         *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:          make(map[string]*Tool),
		workspaceTools: make(map[string][]string),
		logger:         logger.With("component", "tool_registry"),
	}
}

// Register adds a tool. Registering a duplicate name overwrites the previous
// entry; last registration wins.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.tools[tool.Name]; exists {
		r.logger.Warn("tool already registered, overwriting",
			"tool", tool.Name, "previous_workspace", prev.Workspace)
		r.removeFromWorkspace(prev.Workspace, tool.Name)
	}

	r.tools[tool.Name] = tool
	r.workspaceTools[tool.Workspace] = append(r.workspaceTools[tool.Workspace], tool.Name)
	r.logger.Info("registered tool", "tool", tool.Name, "workspace", tool.Workspace)
}

func (r *Registry) removeFromWorkspace(workspace, name string) {
	names := r.workspaceTools[workspace]
	for i, n := range names {
		if n == name {
			r.workspaceTools[workspace] = append(names[:i], names[i+1:]...)
			break
		}
	}
	if len(r.workspaceTools[workspace]) == 0 {
		delete(r.workspaceTools, workspace)
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// HasWorkspace reports whether any tool is registered under the workspace.
func (r *Registry) HasWorkspace(workspace string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workspaceTools[workspace]
	return ok
}

// Workspaces lists all registered workspaces, sorted.
func (r *Registry) Workspaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.workspaceTools))
	for ws := range r.workspaceTools {
		out = append(out, ws)
	}
	sort.Strings(out)
	return out
}

// WorkspaceTools returns the tools registered under a workspace, in
// registration order.
func (r *Registry) WorkspaceTools(workspace string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.workspaceTools[workspace]
	out := make([]*Tool, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			out = append(out, tool)
		}
	}
	return out
}

// WorkspaceFunctions returns the declarations exposed to the model for a
// workspace. This is the only view the model ever sees, which keeps
// capabilities isolated across workspaces.
func (r *Registry) WorkspaceFunctions(workspace string) []*llm.FunctionDef {
	tools := r.WorkspaceTools(workspace)
	out := make([]*llm.FunctionDef, 0, len(tools))
	for _, tool := range tools {
		out = append(out, &llm.FunctionDef{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return out
}

// Count returns the number of registered tools, optionally filtered by
// workspace.
func (r *Registry) Count(workspace string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if workspace != "" {
		return len(r.workspaceTools[workspace])
	}
	return len(r.tools)
}

// Execute looks up and runs a tool. Unknown names, argument mismatches,
// handler errors and panics all come back as a failed Result; the caller can
// always feed the outcome to the model and keep going.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, ec ExecContext) (res Result) {
	tool, ok := r.Get(name)
	if !ok {
		r.logger.Error("tool not found", "tool", name)
		return Result{Success: false, Error: fmt.Sprintf("Tool '%s' not found", name)}
	}

	if err := checkArguments(tool.Parameters, args); err != nil {
		r.logger.Error("tool arguments rejected", "tool", name, "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			res = Result{Success: false, Error: fmt.Sprintf("tool '%s' panicked: %v", name, rec)}
		}
	}()

	r.logger.Info("executing tool", "tool", name, "workspace", tool.Workspace)
	out, err := tool.Handler(ctx, ec, args)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	r.logger.Info("tool executed successfully", "tool", name)
	return Result{Success: true, Result: out}
}

// checkArguments validates the raw arguments against the declared schema
// before dispatch: the payload must be a JSON object and every required
// property must be present.
func checkArguments(schema *jsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if schema == nil {
		return nil
	}
	for _, required := range schema.Required {
		if _, ok := obj[required]; !ok {
			return fmt.Errorf("missing required argument %q", required)
		}
	}
	return nil
}
