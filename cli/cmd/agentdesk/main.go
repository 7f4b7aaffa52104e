package main

import (
	"context"
	"errors"
	"os"

	"github.com/fatih/color"
	_ "go.uber.org/automaxprocs"

	"github.com/kagent-dev/agentdesk/cli/internal/cli/agent"
)

func main() {
	cmd := agent.NewRootCmd()
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		var failed *agent.RunFailedError
		if !errors.As(err, &failed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
