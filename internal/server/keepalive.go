package server

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

// KeepAliveInterval is how long an event stream may stay silent before a
// keep-alive comment is written
const KeepAliveInterval = 30 * time.Second

// streamItem is either a session update or, when update is nil, a keep-alive
type streamItem struct {
	update *session.Update
}

// withKeepAlive forwards updates and injects a keep-alive whenever no
// update arrived for interval. The output closes when updates closes or
// ctx is done.
func withKeepAlive(ctx context.Context, updates <-chan session.Update, interval time.Duration) <-chan streamItem {
	log := logr.FromContextOrDiscard(ctx).WithName("keepalive")
	out := make(chan streamItem)

	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case u, ok := <-updates:
				if !ok {
					log.V(1).Info("Update feed closed")
					return
				}
				select {
				case out <- streamItem{update: &u}:
					ticker.Reset(interval)
				case <-ctx.Done():
					return
				}

			case <-ticker.C:
				select {
				case out <- streamItem{}:
					log.V(1).Info("Keep-alive sent")
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
