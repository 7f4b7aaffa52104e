package agent

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/pkg/adk"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

// ReplConfig holds configuration for the repl command
type ReplConfig struct {
	Root    *RootConfig
	Project string
	Session string
}

// NewReplCmd creates the repl command
func NewReplCmd(root *RootConfig) *cobra.Command {
	cfg := &ReplConfig{Root: root}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Line-oriented chat shell",
		Long: `Chat with the agent line by line. Answers stream while you can keep typing.

Commands:
  :cancel    cancel the running answer
  :history   print the conversation so far
  :session   print the session ID
  exit       leave the shell`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Project, "project", "", "Project root for the file tools")
	cmd.Flags().StringVar(&cfg.Session, "session", "", "Resume a stored session")

	return cmd
}

func runRepl(ctx context.Context, cfg *ReplConfig) error {
	c := cfg.Root.Config
	if cfg.Project != "" {
		c.Project.Root = cfg.Project
	}
	if err := c.Validate(); err != nil {
		return err
	}

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

	shell := ishell.New()
	shell.SetPrompt("agentdesk> ")
	shell.Printf("session %s, model %s\n", ctrl.ID(), app.Transport.Model())
	stop := attachShell(ctx, shell, ctrl)
	defer stop()
	shell.Run()
	shell.Close()
	return nil
}

// attachShell wires ctrl into shell: plain lines are submitted, updates
// are printed as they arrive. The returned func detaches the printer.
func attachShell(ctx context.Context, shell *ishell.Shell, ctrl *session.Controller) func() {
	updates, unsubscribe := ctrl.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p := newPrinter(shellWriter{shell}, io.Discard)
		p.started = true
		for u := range updates {
			p.handle(u.Event)
		}
	}()

	shell.AddCmd(&ishell.Cmd{
		Name: ":cancel",
		Help: "cancel the running answer",
		Func: func(c *ishell.Context) {
			if !ctrl.CancelActive() {
				c.Println("nothing to cancel")
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: ":history",
		Help: "print the conversation",
		Func: func(c *ishell.Context) {
			c.Print(formatHistory(ctrl.Snapshot()))
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: ":session",
		Help: "print the session ID",
		Func: func(c *ishell.Context) {
			c.Println(ctrl.ID())
		},
	})
	shell.NotFound(func(c *ishell.Context) {
		text := strings.TrimSpace(strings.Join(c.RawArgs, " "))
		if text == "" {
			return
		}
		if _, err := ctrl.Submit(ctx, text); err != nil {
			failureColor.Fprintln(shellWriter{shell}, err.Error())
		}
	})
	shell.Interrupt(func(c *ishell.Context, count int, input string) {
		if ctrl.CancelActive() {
			return
		}
		if count >= 2 {
			c.Stop()
			return
		}
		c.Println("press Ctrl+C again or type exit to quit")
	})

	return func() {
		unsubscribe()
		<-done
	}
}

type shellWriter struct {
	shell *ishell.Shell
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.shell.Print(string(p))
	return len(p), nil
}

// formatHistory renders a conversation as role-tagged paragraphs
func formatHistory(snap conversation.Snapshot) string {
	var sb strings.Builder
	for _, t := range snap.All() {
		role := string(t.Role)
		sb.WriteString(roleColor[role].Sprint(role))
		sb.WriteString(": ")
		switch t.Role {
		case conversation.RoleTool:
			fmt.Fprintf(&sb, "%s → %s", t.Result.Name, t.Result.Content())
		default:
			sb.WriteString(t.Text)
			for _, call := range t.ToolCalls {
				fmt.Fprintf(&sb, "\n  → %s %s", call.Name, call.ArgumentsJSON())
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
