package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/kagent-dev/agentdesk/pkg/adk"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP surface of app until ctx is done, then shuts the
// server down and cancels every active run.
func Serve(ctx context.Context, app *adk.App) error {
	log := logr.FromContextOrDiscard(ctx).WithName("server")
	srv := New(app.Manager, app.Metrics, log).HTTPServer(app.Config.Server.Host, app.Config.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		// active runs end first so open event streams see their terminal update
		closeErr := app.Manager.Close(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return closeErr
	})
	return g.Wait()
}
