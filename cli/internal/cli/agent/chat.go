package agent

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/internal/tui"
	"github.com/kagent-dev/agentdesk/pkg/adk"
)

// ChatConfig holds configuration for the chat command
type ChatConfig struct {
	Root    *RootConfig
	Project string
	Session string
}

// NewChatCmd creates the chat command
func NewChatCmd(root *RootConfig) *cobra.Command {
	cfg := &ChatConfig{Root: root}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat interface",
		Long: `Open a full-screen chat with the agent. Answers stream as they arrive,
Esc cancels the running answer and Ctrl+C quits.

Examples:
  agentdesk chat
  agentdesk chat --project . --session 3f2a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Project, "project", "", "Project root for the file tools")
	cmd.Flags().StringVar(&cfg.Session, "session", "", "Resume a stored session")

	return cmd
}

func runChat(ctx context.Context, cfg *ChatConfig) error {
	c := cfg.Root.Config
	if cfg.Project != "" {
		c.Project.Root = cfg.Project
	}
	if err := c.Validate(); err != nil {
		return err
	}

	// log lines would corrupt the full-screen view
	ctx = logr.NewContext(ctx, logr.Discard())

	app, err := adk.NewApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))
	if err := app.Start(ctx); err != nil {
		return err
	}

	ctrl, err := openSession(ctx, app, cfg.Session)
	if err != nil {
		return err
	}
	return tui.Run(ctx, ctrl, app.Transport.Model())
}
