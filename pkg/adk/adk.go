// Package adk assembles the agent runtime from configuration: model
// transport, credentials, tools, orchestrator, chat store and sessions.
package adk

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kagent-dev/agentdesk/pkg/adk/auth"
	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	"github.com/kagent-dev/agentdesk/pkg/adk/editor"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
	"github.com/kagent-dev/agentdesk/pkg/adk/orchestrator"
	"github.com/kagent-dev/agentdesk/pkg/adk/session"
	"github.com/kagent-dev/agentdesk/pkg/adk/store"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools/mcp"
)

// App is a fully wired agent runtime
type App struct {
	Config       *config.Config
	Transport    llm.Transport
	Credentials  auth.Provider
	TokenService *auth.TokenService
	Registry     *tools.Registry
	// Buffers holds the scratch document of each session, edited by the
	// editor tools
	Buffers      *editor.Workspace
	Project      *tools.Project
	Orchestrator *orchestrator.Orchestrator
	Metrics      *prometheus.Registry
	Store        *store.Store
	Manager      *session.Manager

	mcp *mcp.Registered
}

type options struct {
	transport llm.Transport
	noStore   bool
	noMCP     bool
}

// Option customizes NewApp
type Option func(*options)

// WithTransport replaces the configured provider transport
func WithTransport(t llm.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithoutStore keeps sessions in memory only
func WithoutStore() Option {
	return func(o *options) { o.noStore = true }
}

// WithoutMCP skips connecting to the configured MCP servers
func WithoutMCP() Option {
	return func(o *options) { o.noMCP = true }
}

// NewApp builds the runtime described by cfg. MCP servers that fail to
// connect are logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logr.FromContextOrDiscard(ctx).WithName("app")

	app := &App{
		Config:   cfg,
		Registry: tools.NewRegistry(),
		Buffers:  editor.NewWorkspace(),
		Metrics:  prometheus.NewRegistry(),
	}
	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app.Transport = o.transport
	if app.Transport == nil {
		t, err := llm.NewTransport(cfg.Model)
		if err != nil {
			return nil, err
		}
		app.Transport = t
	}
	app.Credentials = app.credentialChain()

	if err := app.initializeTools(ctx, o.noMCP); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.Orchestrator = orchestrator.New(
		app.Transport,
		app.Registry,
		app.Credentials,
		orchestrator.FromConfig(cfg.Orchestrator),
		orchestrator.WithMetrics(orchestrator.NewMetrics(app.Metrics)),
	)

	if !o.noStore {
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
		app.Store = st
	}
	app.Manager = session.NewManager(app.Orchestrator, app.Store, session.WithOnDelete(app.Buffers.Drop))

	log.V(1).Info("App ready", "provider", cfg.Model.Provider, "model", app.Transport.Model(), "tools", len(app.Registry.Names()))
	return app, nil
}

// credentialChain prefers an explicit key, then the token file, then the
// provider's environment variable.
func (a *App) credentialChain() auth.Provider {
	var chain auth.Chain
	if a.Config.Model.APIKey != "" {
		chain = append(chain, auth.NewStaticProvider(a.Config.Model.APIKey))
	}
	if a.Config.Credentials.TokenFile != "" {
		a.TokenService = auth.NewTokenService(a.Config.Credentials.TokenFile, a.Config.Credentials.RefreshPeriod)
		chain = append(chain, a.TokenService)
	}
	if a.Config.Model.APIKeyEnv != "" {
		chain = append(chain, auth.NewEnvProvider(a.Config.Model.APIKeyEnv))
	}
	return chain
}

func (a *App) initializeTools(ctx context.Context, noMCP bool) error {
	for _, t := range tools.EditorTools(a.Buffers) {
		if err := a.Registry.Register(t); err != nil {
			return err
		}
	}

	if a.Config.Project.Root != "" {
		p, err := tools.NewProject(a.Config.Project.Root, a.Config.Project.MaxFileBytes)
		if err != nil {
			return err
		}
		a.Project = p
		for _, t := range tools.ProjectTools(p) {
			if err := a.Registry.Register(t); err != nil {
				return err
			}
		}
	}

	if noMCP || len(a.Config.MCPServers) == 0 {
		return nil
	}
	registered, err := mcp.Register(ctx, a.Registry, a.Config.MCPServers)
	a.mcp = registered
	if err != nil {
		logr.FromContextOrDiscard(ctx).WithName("app").Info("Some MCP servers are unavailable", "error", err.Error())
	}
	return nil
}

// Start begins background work, currently the token file refresher
func (a *App) Start(ctx context.Context) error {
	if a.TokenService == nil {
		return nil
	}
	return a.TokenService.Start(ctx)
}

// Close cancels active runs and releases every resource
func (a *App) Close(ctx context.Context) error {
	var result error
	if a.Manager != nil {
		if err := a.Manager.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.mcp != nil {
		if err := a.mcp.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.TokenService != nil {
		a.TokenService.Stop()
	}
	return result
}
