package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/kagent-dev/agentdesk/internal/logging"
	"github.com/kagent-dev/agentdesk/internal/server"
	"github.com/kagent-dev/agentdesk/pkg/adk"
	"github.com/kagent-dev/agentdesk/pkg/adk/config"
)

func main() {
	flags := pflag.NewFlagSet("agentdesk-server", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to the configuration file (default: ~/.agentdesk/config.yaml)")
	flags.String("model", "", "Model name")
	flags.String("provider", "", "Model provider: OpenAI, Anthropic or Gemini")
	flags.Int("max-tool-rounds", 0, "Maximum tool rounds per run")
	flags.Int("max-retries", 0, "Retries after a retryable model failure")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configPath, flags); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error(err, "Invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logr.NewContext(ctx, log)

	log.Info("Starting agentdesk server", "provider", cfg.Model.Provider, "model", cfg.Model.Name, "addr", cfg.Server.Addr())
	app, err := adk.NewApp(ctx, cfg)
	if err != nil {
		log.Error(err, "Failed to create app")
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	if err := server.Serve(ctx, app); err != nil {
		log.Error(err, "Server stopped with error")
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
