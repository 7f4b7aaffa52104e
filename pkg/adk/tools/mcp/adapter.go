// Package mcp exposes the tools of MCP servers through the tool registry.
package mcp

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stoewer/go-strcase"

	"github.com/kagent-dev/agentdesk/pkg/adk/config"
	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
	"github.com/kagent-dev/agentdesk/pkg/adk/tools"
)

// ClientVersion is reported to MCP servers during initialization
var ClientVersion = "dev"

// Client is the subset of the MCP client used by the adapter
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Server is a connected MCP server
type Server struct {
	name   string
	client Client
}

// NewServer wraps an initialized client
func NewServer(name string, c Client) *Server {
	return &Server{name: name, client: c}
}

// Name returns the configured server name
func (s *Server) Name() string {
	return s.name
}

// Close disconnects from the server
func (s *Server) Close() error {
	return s.client.Close()
}

// Connect starts a client for cfg and performs the MCP handshake
func Connect(ctx context.Context, cfg config.MCPServerConfig) (*Server, error) {
	var (
		c   *client.Client
		err error
	)
	switch {
	case cfg.URL != "":
		c, err = client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
		if err == nil {
			err = c.Start(ctx)
		}
	case cfg.Command != "":
		c, err = client.NewStdioMCPClient(cfg.Command, envList(cfg.Env), cfg.Args...)
	default:
		return nil, apperrors.Newf(apperrors.ErrCodeAgentConfig, "mcp server %s needs a url or a command", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start mcp server %s: %w", cfg.Name, err)
	}

	if err := Initialize(ctx, c); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize mcp server %s: %w", cfg.Name, err)
	}
	return NewServer(cfg.Name, c), nil
}

// Initialize sends the MCP initialize request
func Initialize(ctx context.Context, c Client) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "agentdesk", Version: ClientVersion}
	_, err := c.Initialize(ctx, req)
	return err
}

// Tools lists the server's tools adapted to the registry interface
func (s *Server) Tools(ctx context.Context) ([]tools.Tool, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools of %s: %w", s.name, err)
	}
	out := make([]tools.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, newTool(s, t))
	}
	return out, nil
}

// ToolName is the registry name of remote tool on server
func ToolName(server, remote string) string {
	return strcase.SnakeCase(server) + "_" + strcase.SnakeCase(remote)
}

// Tool forwards calls to one remote MCP tool
type Tool struct {
	tools.BaseTool
	server *Server
	remote string
}

func newTool(s *Server, t mcp.Tool) *Tool {
	desc := t.Description
	if desc == "" {
		desc = fmt.Sprintf("%s tool from the %s MCP server", t.Name, s.name)
	}
	return &Tool{
		BaseTool: tools.NewBaseTool(ToolName(s.name, t.Name), desc, convertSchema(t.InputSchema)),
		server:   s,
		remote:   t.Name,
	}
}

// Remote returns the tool name on the server
func (t *Tool) Remote() string {
	return t.remote
}

func (t *Tool) RunAsync(ctx context.Context, args map[string]any, toolCtx *tools.Context) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("mcp").WithValues("server", t.server.name, "tool", t.remote)

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remote
	req.Params.Arguments = args

	res, err := t.server.client.CallTool(ctx, req)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeToolExecution, fmt.Sprintf("mcp call %s failed", t.remote), err)
	}
	text := contentText(res.Content)
	if res.IsError {
		log.V(1).Info("Remote tool returned an error", "message", text)
		return "", apperrors.New(apperrors.ErrCodeToolExecution, text, nil)
	}
	return text, nil
}

func contentText(contents []mcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		switch c := c.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		case mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		}
	}
	return strings.Join(parts, "\n")
}

func convertSchema(in mcp.ToolInputSchema) map[string]any {
	props := in.Properties
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(in.Required) > 0 {
		schema["required"] = slices.Clone(in.Required)
	}
	return schema
}

// envList renders env as KEY=value pairs. Keys are upper-cased because
// configuration keys arrive lower-cased.
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, strings.ToUpper(k)+"="+env[k])
	}
	return out
}

// Registered tracks the servers whose tools were added to a registry
type Registered struct {
	Servers []*Server
}

// Close disconnects every server
func (r *Registered) Close() error {
	var result error
	for _, s := range r.Servers {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Register connects to every configured server and adds its tools to reg.
// A server that fails is skipped; all failures are returned together.
func Register(ctx context.Context, reg *tools.Registry, servers []config.MCPServerConfig) (*Registered, error) {
	return register(ctx, reg, servers, Connect)
}

type connectFunc func(ctx context.Context, cfg config.MCPServerConfig) (*Server, error)

func register(ctx context.Context, reg *tools.Registry, servers []config.MCPServerConfig, connect connectFunc) (*Registered, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("mcp")
	out := &Registered{}
	var result error

	for _, cfg := range servers {
		s, err := connect(ctx, cfg)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		list, err := s.Tools(ctx)
		if err != nil {
			_ = s.Close()
			result = multierror.Append(result, err)
			continue
		}
		for _, t := range list {
			if err := reg.Register(t); err != nil {
				result = multierror.Append(result, err)
			}
		}
		out.Servers = append(out.Servers, s)
		log.Info("Registered MCP tools", "server", cfg.Name, "count", len(list))
	}
	if result != nil {
		return out, apperrors.New(apperrors.ErrCodeToolExecution, "some mcp servers failed", result)
	}
	return out, nil
}
