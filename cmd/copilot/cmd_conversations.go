package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/foodflow/copilot/src/config"
	"github.com/foodflow/copilot/src/convstore"
)

// ConversationsCmd inspects stored conversations.
type ConversationsCmd struct {
	List     ConversationsListCmd  `cmd:"" help:"List conversations for a tenant"`
	Show     ConversationsShowCmd  `cmd:"" help:"Show the messages of a conversation"`
	Stats    ConversationsStatsCmd `cmd:"" help:"Show aggregate statistics for a conversation"`
	Feedback FeedbackCmd           `cmd:"" help:"Record user feedback on a conversation"`
}

func openStore(cli *CLI) (*convstore.Store, *convstore.DB, error) {
	logger := createLogger(cli.LogLevel, cli.LogJSON)

	cfg, err := config.NewLoader().Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}

	db, err := convstore.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	return convstore.NewStore(db, logger), db, nil
}

// ConversationsListCmd lists conversations for a tenant.
type ConversationsListCmd struct {
	Tenant string `required:"" help:"Tenant ID (UUID)"`
	Limit  int    `default:"20" help:"Maximum conversations to show"`
}

// Run executes the list command.
func (c *ConversationsListCmd) Run(ctx *kong.Context, cli *CLI) error {
	tenantID, err := uuid.Parse(c.Tenant)
	if err != nil {
		return fmt.Errorf("invalid tenant ID: %w", err)
	}

	store, db, err := openStore(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	conversations, err := store.ListConversations(context.Background(), tenantID, c.Limit)
	if err != nil {
		return err
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	for _, conv := range conversations {
		fmt.Printf("%s  %-10s  updated %s\n",
			conv.ID, conv.Workspace, conv.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// ConversationsShowCmd prints the messages of one conversation.
type ConversationsShowCmd struct {
	ID string `arg:"" help:"Conversation ID"`
}

// Run executes the show command.
func (c *ConversationsShowCmd) Run(ctx *kong.Context, cli *CLI) error {
	store, db, err := openStore(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	messages, err := store.GetMessages(context.Background(), c.ID)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		content := ""
		if msg.Content != nil {
			content = *msg.Content
		}
		if msg.FunctionCall != nil {
			fc, err := msg.DecodeFunctionCall()
			if err == nil && fc != nil {
				content = fmt.Sprintf("[call %s(%s)]", fc.Name, string(fc.Arguments))
			}
		}
		fmt.Printf("%-9s | %s\n", msg.Role, content)
	}
	return nil
}

// ConversationsStatsCmd prints aggregate statistics for one conversation.
type ConversationsStatsCmd struct {
	ID string `arg:"" help:"Conversation ID"`
}

// Run executes the stats command.
func (c *ConversationsStatsCmd) Run(ctx *kong.Context, cli *CLI) error {
	store, db, err := openStore(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := store.Stats(context.Background(), c.ID)
	if err != nil {
		return err
	}

	fmt.Printf("messages:     %d\n", stats.MessageCount)
	fmt.Printf("tool calls:   %d\n", len(stats.ToolCalls))
	fmt.Printf("unique tools: %v\n", stats.UniqueTools)
	fmt.Printf("total tokens: %d\n", stats.TotalTokens)
	return nil
}

// FeedbackCmd records user feedback on a conversation.
type FeedbackCmd struct {
	ID        string `arg:"" help:"Conversation ID"`
	Rating    int    `required:"" help:"Rating from 1 to 5"`
	Comment   string `help:"Free-text feedback"`
	MessageID string `help:"Specific message the feedback refers to"`
}

// Run executes the feedback command.
func (c *FeedbackCmd) Run(ctx *kong.Context, cli *CLI) error {
	store, db, err := openStore(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	var messageID *string
	if c.MessageID != "" {
		messageID = &c.MessageID
	}

	if err := store.RecordFeedback(context.Background(), c.ID, messageID, c.Rating, c.Comment); err != nil {
		return err
	}

	fmt.Println("Feedback recorded.")
	return nil
}
