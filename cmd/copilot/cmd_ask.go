package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/foodflow/copilot/src/app"
	"github.com/foodflow/copilot/src/config"
	"github.com/foodflow/copilot/src/engine"
)

// AskCmd sends one question through the orchestration loop.
type AskCmd struct {
	Text []string `arg:"" help:"The question to ask"`

	Workspace      string `short:"w" required:"" help:"Workspace (plantops, fsq, planning, brand, retail)"`
	Tenant         string `required:"" help:"Tenant ID (UUID)"`
	User           string `required:"" help:"User ID (UUID)"`
	ConversationID string `help:"Continue an existing conversation"`
	Context        string `help:"Request context as a JSON object (entity IDs, filters)"`
	Output         string `short:"o" default:"text" enum:"text,json" help:"Output format (text, json)"`
}

// Run executes the ask command.
func (c *AskCmd) Run(ctx *kong.Context, cli *CLI) error {
	logger := createLogger(cli.LogLevel, cli.LogJSON)

	cfg, err := config.NewLoader().Load(cli.Config)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(c.Tenant)
	if err != nil {
		return fmt.Errorf("invalid tenant ID: %w", err)
	}
	userID, err := uuid.Parse(c.User)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	var reqContext map[string]any
	if c.Context != "" {
		if err := json.Unmarshal([]byte(c.Context), &reqContext); err != nil {
			return fmt.Errorf("invalid context JSON: %w", err)
		}
	}

	instance, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	resp, err := instance.Engine.Chat(context.Background(), &engine.Request{
		TenantID:       tenantID,
		UserID:         userID,
		Workspace:      c.Workspace,
		Message:        strings.Join(c.Text, " "),
		ConversationID: c.ConversationID,
		Context:        reqContext,
	})
	if err != nil {
		return err
	}

	if c.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	if len(resp.Actions) > 0 {
		fmt.Println()
		for _, action := range resp.Actions {
			fmt.Printf("  -> %s: %s\n", action.Label, action.URL)
		}
	}
	fmt.Printf("\n[conversation %s | tools: %s | tokens: %d | %.0fms]\n",
		resp.ConversationID, strings.Join(resp.ToolsUsed, ", "), resp.TokensUsed, resp.DurationMs)
	return nil
}
