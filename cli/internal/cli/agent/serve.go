package agent

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/internal/server"
	"github.com/kagent-dev/agentdesk/pkg/adk"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Root    *RootConfig
	Host    string
	Port    int
	Project string
}

// NewServeCmd creates the serve command
func NewServeCmd(root *RootConfig) *cobra.Command {
	cfg := &ServeConfig{Root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve sessions over HTTP until interrupted.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/sessions                  create a session
  GET  /api/v1/sessions                  list sessions
  GET  /api/v1/sessions/{id}/conversation
  POST /api/v1/sessions/{id}/submit      {"text": "..."}
  POST /api/v1/sessions/{id}/cancel
  GET  /api/v1/sessions/{id}/events      server-sent events

Examples:
  agentdesk serve
  agentdesk serve --host 0.0.0.0 --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", "", "Host to bind to (default from config)")
	cmd.Flags().IntVar(&cfg.Port, "port", 0, "Port to bind to (default from config)")
	cmd.Flags().StringVar(&cfg.Project, "project", "", "Project root for the file tools")

	return cmd
}

func runServe(ctx context.Context, cfg *ServeConfig) error {
	c := cfg.Root.Config
	if cfg.Host != "" {
		c.Server.Host = cfg.Host
	}
	if cfg.Port != 0 {
		c.Server.Port = cfg.Port
	}
	if cfg.Project != "" {
		c.Project.Root = cfg.Project
	}
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, stop := withInterrupt(ctx)
	defer stop()

	app, err := adk.NewApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	return server.Serve(ctx, app)
}
