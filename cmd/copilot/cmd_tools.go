package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/foodflow/copilot/src/toolreg"
	"github.com/foodflow/copilot/src/tools"
)

// ToolsCmd lists registered tools, optionally filtered by workspace.
type ToolsCmd struct {
	Workspace string `short:"w" help:"Only show tools for this workspace"`
}

// Run executes the tools command.
func (c *ToolsCmd) Run(ctx *kong.Context, cli *CLI) error {
	logger := createLogger("error", cli.LogJSON)

	registry := toolreg.NewRegistry(logger)
	tools.RegisterAll(registry, tools.Deps{Logger: logger})

	workspaces := registry.Workspaces()
	if c.Workspace != "" {
		if !registry.HasWorkspace(c.Workspace) {
			return fmt.Errorf("unknown workspace %q (valid: %v)", c.Workspace, workspaces)
		}
		workspaces = []string{c.Workspace}
	}

	for _, ws := range workspaces {
		fmt.Printf("%s (%d tools)\n", ws, registry.Count(ws))
		for _, tool := range registry.WorkspaceTools(ws) {
			fmt.Printf("  %-28s %s\n", tool.Name, tool.Description)
		}
		fmt.Println()
	}
	return nil
}
