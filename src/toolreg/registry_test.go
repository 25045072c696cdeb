package toolreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/foodflow/copilot/src/schema"
)

func echoTool(name, workspace string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its arguments",
		Parameters: schema.Object(map[string]*jsonschema.Schema{
			"value": schema.String("value to echo"),
		}, []string{"value"}),
		Workspace: workspace,
		Handler: func(ctx context.Context, ec ExecContext, args json.RawMessage) (any, error) {
			var a struct {
				Value string `json:"value"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return nil, err
			}
			return map[string]any{"echo": a.Value}, nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, "plantops", tool.Workspace)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterDuplicateLastWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	replacement := echoTool("echo", "fsq")
	replacement.Description = "replacement"
	r.Register(replacement)

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "replacement", tool.Description)
	assert.Equal(t, "fsq", tool.Workspace)

	// The stale workspace index entry is gone with its last tool.
	assert.False(t, r.HasWorkspace("plantops"))
	assert.Equal(t, []string{"echo"}, toolNames(r.WorkspaceTools("fsq")))
}

func TestWorkspaceIsolation(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("po_tool", "plantops"))
	r.Register(echoTool("fsq_tool_a", "fsq"))
	r.Register(echoTool("fsq_tool_b", "fsq"))

	assert.Equal(t, []string{"po_tool"}, toolNames(r.WorkspaceTools("plantops")))
	assert.Equal(t, []string{"fsq_tool_a", "fsq_tool_b"}, toolNames(r.WorkspaceTools("fsq")))
	assert.Empty(t, r.WorkspaceTools("retail"))

	fns := r.WorkspaceFunctions("fsq")
	require.Len(t, fns, 2)
	assert.Equal(t, "fsq_tool_a", fns[0].Name)

	assert.Equal(t, []string{"fsq", "plantops"}, r.Workspaces())
	assert.Equal(t, 3, r.Count(""))
	assert.Equal(t, 2, r.Count("fsq"))
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	res := r.Execute(context.Background(), "echo", json.RawMessage(`{"value":"hi"}`), ExecContext{})
	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, map[string]any{"echo": "hi"}, res.Result)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)

	res := r.Execute(context.Background(), "nope", nil, ExecContext{})
	assert.False(t, res.Success)
	assert.Equal(t, "Tool 'nope' not found", res.Error)
}

func TestExecuteMissingRequiredArgument(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	res := r.Execute(context.Background(), "echo", json.RawMessage(`{}`), ExecContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `missing required argument "value"`)
}

func TestExecuteNonObjectArguments(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	res := r.Execute(context.Background(), "echo", json.RawMessage(`[1,2]`), ExecContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "arguments must be a JSON object")
}

func TestExecuteHandlerErrorBecomesFailedResult(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Tool{
		Name:      "failing",
		Workspace: "plantops",
		Handler: func(ctx context.Context, ec ExecContext, args json.RawMessage) (any, error) {
			return nil, errors.New("line 42 not found")
		},
	})

	res := r.Execute(context.Background(), "failing", nil, ExecContext{})
	assert.False(t, res.Success)
	assert.Equal(t, "line 42 not found", res.Error)
	assert.Nil(t, res.Result)
}

func TestExecutePanicIsIsolated(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Tool{
		Name:      "panicky",
		Workspace: "plantops",
		Handler: func(ctx context.Context, ec ExecContext, args json.RawMessage) (any, error) {
			panic("unexpected nil")
		},
	})

	var res Result
	require.NotPanics(t, func() {
		res = r.Execute(context.Background(), "panicky", nil, ExecContext{})
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")
	assert.Contains(t, res.Error, "unexpected nil")
}

func TestExecuteEmptyArgumentsWithNoRequiredFields(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Tool{
		Name:       "no_args",
		Workspace:  "plantops",
		Parameters: schema.Object(map[string]*jsonschema.Schema{}, nil),
		Handler: func(ctx context.Context, ec ExecContext, args json.RawMessage) (any, error) {
			return "ok", nil
		},
	})

	res := r.Execute(context.Background(), "no_args", nil, ExecContext{})
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Result)
}

func toolNames(tools []*Tool) []string {
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func ExampleRegistry_Execute() {
	r := NewRegistry(nil)
	r.Register(echoTool("echo", "plantops"))

	res := r.Execute(context.Background(), "echo", json.RawMessage(`{"value":"hello"}`), ExecContext{})
	out, _ := json.Marshal(res)
	fmt.Println(string(out))
	// Output: {"success":true,"result":{"echo":"hello"}}
}
