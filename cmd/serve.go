package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/conductr/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API and the authorization callback until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	handler, err := r.httpHandler()
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting server", "addr", addr, "handoff", r.handoff.Backend())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// httpHandler wires the full pipeline behind the HTTP router.
func (r *Runner) httpHandler() (http.Handler, error) {
	res, err := r.resolver()
	if err != nil {
		return nil, err
	}
	ranker, err := r.ranker()
	if err != nil {
		return nil, err
	}
	orch, err := r.orchestrator()
	if err != nil {
		return nil, err
	}

	api := server.NewAPIHandler(res, ranker, r.handoff, r.account, r.logger)
	callback := server.NewCallbackHandler(r.handoff, orch, r.logger)
	return server.NewRouter(api, callback, r.logger), nil
}
