package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config   string `short:"c" help:"Path to config file" type:"path"`
	LogLevel string `default:"warn" help:"Log level (debug, info, warn, error)"`
	LogJSON  bool   `help:"Emit logs as JSON"`

	Ask           AskCmd           `cmd:"" help:"Ask the copilot a question"`
	Conversations ConversationsCmd `cmd:"" help:"Inspect stored conversations"`
	Tools         ToolsCmd         `cmd:"" help:"List registered tools"`
	Migrate       MigrateCmd       `cmd:"" help:"Database migrations"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("copilot"),
		kong.Description("Workspace copilot for food manufacturing operations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
