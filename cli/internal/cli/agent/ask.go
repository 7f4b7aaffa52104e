package agent

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/pkg/adk"
	"github.com/kagent-dev/agentdesk/pkg/adk/contextpack"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
	"github.com/kagent-dev/agentdesk/pkg/adk/snippets"
)

// AskConfig holds configuration for the ask command
type AskConfig struct {
	Root *RootConfig

	Project        string
	Files          []string
	Snippets       bool
	Session        string
	IncludeHistory bool
	NoHistory      bool
}

// NewAskCmd creates the ask command
func NewAskCmd(root *RootConfig) *cobra.Command {
	cfg := &AskConfig{Root: root}

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt and stream the answer",
		Long: `Send one prompt to the model and stream the answer to stdout.

With --project the prompt is wrapped in a context pack holding the project
tree and the content of every --file. With --snippets the model is asked for
directly applicable snippets, which are summarized in a table.

Examples:
  agentdesk ask "What is 2+2?"
  agentdesk ask "Add a --verbose flag" --project . --file cmd/main.go --snippets
  agentdesk ask "And now the tests" --session 3f2a... --include-history`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&cfg.Project, "project", "", "Project root given to the model as context and to the file tools")
	cmd.Flags().StringSliceVar(&cfg.Files, "file", nil, "File to include in the context pack (repeatable)")
	cmd.Flags().BoolVar(&cfg.Snippets, "snippets", false, "Ask for applicable code snippets")
	cmd.Flags().StringVar(&cfg.Session, "session", "", "Continue a stored session")
	cmd.Flags().BoolVar(&cfg.IncludeHistory, "include-history", false, "Put earlier answers of the session into the context pack")
	cmd.Flags().BoolVar(&cfg.NoHistory, "no-history", false, "Do not store the conversation")

	return cmd
}

func runAsk(ctx context.Context, cfg *AskConfig, prompt string, out, status io.Writer) error {
	c := cfg.Root.Config
	if cfg.Project != "" {
		c.Project.Root = cfg.Project
	}
	if cfg.Snippets {
		c.Orchestrator.SnippetMode = true
	}
	if err := c.Validate(); err != nil {
		return err
	}

	var opts []adk.Option
	if cfg.NoHistory {
		opts = append(opts, adk.WithoutStore())
	}
	app, err := adk.NewApp(ctx, c, opts...)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))
	if err := app.Start(ctx); err != nil {
		return err
	}

	ctx, stop := withInterrupt(ctx)
	defer stop()
	return ask(ctx, app, cfg, prompt, out, status)
}

func ask(ctx context.Context, app *adk.App, cfg *AskConfig, prompt string, out, status io.Writer) error {
	ctrl, err := openSession(ctx, app, cfg.Session)
	if err != nil {
		return err
	}

	text, err := buildPrompt(app, cfg, ctrl.Snapshot(), prompt)
	if err != nil {
		return err
	}

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	p := newPrinter(out, status)
	p.start()
	defer p.stopSpinner()

	run, err := ctrl.Submit(ctx, text)
	if err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			run.Cancel()
		case <-run.Done():
		}
	}()

	for u := range updates {
		if u.RunID == run.ID() && p.handle(u.Event) {
			break
		}
	}

	<-run.Done()
	outcome := run.Outcome()
	if outcome.State != orchestrator.StateCompleted {
		return &RunFailedError{Outcome: outcome}
	}
	if cfg.Snippets {
		renderSnippets(out, snippets.Parse(outcome.FinalText))
	}
	return nil
}

func openSession(ctx context.Context, app *adk.App, id string) (*session.Controller, error) {
	if id != "" {
		return app.Manager.Get(ctx, id)
	}
	return app.Manager.Create(ctx)
}

// buildPrompt wraps prompt in a context pack when a project is configured
func buildPrompt(app *adk.App, cfg *AskConfig, history conversation.Snapshot, prompt string) (string, error) {
	if app.Project == nil {
		return prompt, nil
	}

	files := contextpack.NewSelection(cfg.Files...).Sorted()
	if len(files) == 0 {
		files = contextpack.NewSelection(app.Config.Project.Files...).Sorted()
	}
	builder := contextpack.NewBuilder(contextpack.NewTreePrinter(app.Project.Rules), app.Project.Reader)
	req := contextpack.Request{
		ProjectRoot: app.Project.Root,
		Selected:    files,
		Prompt:      prompt,
	}
	if cfg.IncludeHistory {
		req.History = previousAnswers(history)
	}
	pack, err := builder.Build(req)
	if err != nil {
		return "", err
	}
	if app.Config.Orchestrator.SnippetMode {
		return contextpack.BuildRequest(pack), nil
	}
	return pack, nil
}

// previousAnswers joins the assistant replies of a conversation
func previousAnswers(history conversation.Snapshot) string {
	var parts []string
	for _, t := range history.All() {
		if t.Role == conversation.RoleAssistant && strings.TrimSpace(t.Text) != "" {
			parts = append(parts, strings.TrimSpace(t.Text))
		}
	}
	return strings.Join(parts, "\n---\n")
}
