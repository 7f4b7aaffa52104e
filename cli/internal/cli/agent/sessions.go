package agent

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/pkg/adk/store"
)

// NewSessionsCmd creates the sessions command group
func NewSessionsCmd(root *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored chat sessions",
		Long: `List, inspect and delete the chat sessions kept in the chat store.

Examples:
  agentdesk sessions list
  agentdesk sessions show 3f2a...
  agentdesk sessions delete 3f2a...`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), root, func(s *store.Store) error {
				return listSessions(cmd.Context(), s, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's revisions and conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), root, func(s *store.Store) error {
				return showSession(cmd.Context(), s, args[0], cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), root, func(s *store.Store) error {
				if err := s.DeleteSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func withStore(ctx context.Context, root *RootConfig, fn func(*store.Store) error) error {
	s, err := store.Open(ctx, root.Config.Store)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func listSessions(ctx context.Context, s *store.Store, out io.Writer) error {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Title", "Revisions", "Updated"})
	for _, sess := range sessions {
		tw.AppendRow(table.Row{sess.ID, sess.Title, sess.RevisionCount, sess.UpdatedAt.Local().Format(time.DateTime)})
	}
	tw.Render()
	return nil
}

func showSession(ctx context.Context, s *store.Store, id string, out io.Writer) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	conv, err := s.LoadConversation(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s  %s\n\n", sess.ID, sess.Title)
	if len(sess.Revisions) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"#", "At", "Model", "State", "Tokens", "Prompt"})
		for i, r := range sess.Revisions {
			marker := ""
			if i == sess.CurrentRevision {
				marker = "*"
			}
			state := r.State
			if r.Code != "" {
				state += " (" + r.Code + ")"
			}
			tw.AppendRow(table.Row{fmt.Sprintf("%d%s", i+1, marker), r.At.Local().Format(time.DateTime), r.Model, state, r.TotalTokens, truncate(r.UserPrompt, 48)})
		}
		tw.Render()
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, formatHistory(conv.Snapshot()))
	return nil
}
