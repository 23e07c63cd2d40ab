package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	httpserver "github.com/fyrsmithlabs/finsight/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the finsight HTTP server.

Endpoints:
  POST /query          answer {"query": "..."}
  GET  /health         liveness
  GET  /api/v1/status  store status and point count
  GET  /metrics        Prometheus metrics

Examples:
  # Serve with defaults (0.0.0.0:8000)
  finsight serve

  # Configure via environment
  SERVER_HTTP_PORT=9000 VECTORSTORE_PROVIDER=chromem finsight serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	orch, err := a.pipeline()
	if err != nil {
		return err
	}

	srv, err := httpserver.NewServer(orch, a.store, a.logger.Underlying(), &httpserver.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		BodyLimit:   a.cfg.Server.BodyLimit,
		Collection:  a.cfg.Qdrant.CollectionName,
		Version:     version,
		Meter:       a.telemetry.Meter(httpserver.InstrumentationName),
	})
	if err != nil {
		return err
	}

	return serveUntilDone(ctx, srv, a)
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down within
// the configured timeout.
func serveUntilDone(ctx context.Context, srv *httpserver.Server, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutdown signal received",
		zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
