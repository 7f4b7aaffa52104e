package agent

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// withInterrupt returns a context cancelled on SIGINT or SIGTERM
func withInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
