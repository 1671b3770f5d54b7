package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yomitext/pdfocr/internal/api"
	"github.com/yomitext/pdfocr/internal/domain"
	"github.com/yomitext/pdfocr/internal/extract"
	"github.com/yomitext/pdfocr/internal/gcs"
	"github.com/yomitext/pdfocr/internal/pdf"
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP extraction API",
		Long: `Serve exposes the orchestrator over HTTP:

  POST   /api/v1/runs          start a run
  GET    /api/v1/runs/{id}     report run progress
  DELETE /api/v1/runs/{id}     cancel a run
  GET    /health               liveness check

Runs started over HTTP live until they finish or the server shuts down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ocrClient, err := newVisionClient(cfg)
			if err != nil {
				return err
			}

			// Async runs need object storage. Without it the server still
			// serves sync runs; async requests fail at Start.
			var blobs domain.BlobStore
			store, err := gcs.NewStore(ctx, cfg.Google.CredentialsPath, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("storage client unavailable, async runs will be rejected")
			} else {
				defer store.Close()
				blobs = store
			}

			orch := extract.NewOrchestrator(pdf.NewRasterizer(logger), ocrClient, blobs, logger, orchestratorOptions(cfg))
			server := api.NewServer(ctx, orch, logger)

			if addr == "" {
				addr = cfg.API.Addr
			}
			srv := &http.Server{
				Addr:         addr,
				Handler:      server.Router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", addr).Msg("HTTP server listening")
				serverErrors <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				logger.Info().Msg("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown failed")
				return srv.Close()
			}

			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
