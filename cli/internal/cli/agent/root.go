// Package agent implements the agentdesk commands.
package agent

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/agentdesk/internal/logging"
	"github.com/kagent-dev/agentdesk/pkg/adk/config"
)

// RootConfig holds the flags shared by every command
type RootConfig struct {
	ConfigFile string
	LogLevel   string

	// Config is loaded before any subcommand runs
	Config *config.Config
}

// NewRootCmd creates the agentdesk command tree
func NewRootCmd() *cobra.Command {
	cfg := &RootConfig{}

	cmd := &cobra.Command{
		Use:   "agentdesk",
		Short: "Conversational coding agent",
		Long: `agentdesk drives a multi-turn conversation with a language model that can
edit a scratch document and, given a project, read and change its files.

Available subcommands:
  ask         Send one prompt and stream the answer
  chat        Open the terminal chat interface
  repl        Line-oriented chat shell
  serve       Run the HTTP API
  sessions    Manage stored chat sessions
  config      Create or show the configuration file

Examples:
  agentdesk ask "What does main.go do?" --project . --file main.go
  agentdesk chat --provider Anthropic
  agentdesk serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to the configuration file (default: ~/.agentdesk/config.yaml)")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.String("model", "", "Model name")
	flags.String("provider", "", "Model provider: OpenAI, Anthropic or Gemini")
	flags.Int("max-tool-rounds", 0, "Maximum tool rounds per run")
	flags.Int("max-retries", 0, "Retries after a retryable model failure")

	cmd.AddCommand(NewAskCmd(cfg))
	cmd.AddCommand(NewChatCmd(cfg))
	cmd.AddCommand(NewReplCmd(cfg))
	cmd.AddCommand(NewServeCmd(cfg))
	cmd.AddCommand(NewSessionsCmd(cfg))
	cmd.AddCommand(NewConfigCmd(cfg))

	return cmd
}

// load reads the configuration and attaches the logger to the command context
func (r *RootConfig) load(cmd *cobra.Command) error {
	c, err := config.Load(r.ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}
	if r.LogLevel != "" {
		c.Log.Level = r.LogLevel
	}
	r.Config = c

	log, err := logging.New(c.Log.Level, c.Log.Development)
	if err != nil {
		return err
	}
	cmd.SetContext(logr.NewContext(cmd.Context(), log))
	return nil
}

func (r *RootConfig) configPath() string {
	if r.ConfigFile != "" {
		return r.ConfigFile
	}
	return config.DefaultPath()
}
