package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/job"
	logpkg "github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/schedule"
	chiTransport "github.com/kailas-cloud/assessdex/internal/transport/chi"
	"github.com/kailas-cloud/assessdex/internal/version"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.withApp(ctx, func(a *app) error { return serve(ctx, a, c.env) })
		},
	}
}

func serve(ctx context.Context, a *app, env string) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("Starting assessdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	if cfg.Rebuild.Schedule != "" {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewRebuildJob(a.documents), cfg.Rebuild.Schedule); err != nil {
			return fmt.Errorf("rebuild job: %w", err)
		}
		scheduler.Start(logpkg.ContextWithLogger(context.WithoutCancel(ctx), logger))
		defer scheduler.Stop()
		logger.Info("Rebuild job scheduled", zap.String("schedule", cfg.Rebuild.Schedule))
	}

	server := chiTransport.NewServer(a.documents, a.search, a.insights, a.enhance, a.health, logger).
		WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys: cfg.Auth.APIKeys,
		Logger:  logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
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
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
	return nil
}
