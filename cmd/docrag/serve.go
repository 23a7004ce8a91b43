package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/docrag/internal/transport/chi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API: document upload and lifecycle under /documents, similarity
retrieval on /query, answer generation on /answer, plus /health and /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, opts.env)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(ctx, a)
		},
	}
}

// newHTTPServer builds the routed API server for a.
func newHTTPServer(a *app) *http.Server {
	// Pass nil interface (not typed nil pointer!) when generation is disabled.
	var answerer chiTransport.Answerer
	if a.answerer != nil {
		answerer = a.answerer
	}

	maxUpload := int64(a.cfg.HTTP.MaxUploadMB) << 20
	server := chiTransport.NewServer(a.documents, a.retriever, answerer, a.health, a.logger.Named("http"), maxUpload)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           server.Router(a.cfg.Auth.APIKeys),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
}

// runServe blocks until ctx is canceled, then drains in-flight requests.
func runServe(ctx context.Context, a *app) error {
	srv := newHTTPServer(a)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
