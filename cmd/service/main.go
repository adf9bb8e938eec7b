// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitledger/internal/api"
	"gitledger/internal/app"
	"gitledger/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration and initialize structured logger
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Configuration loaded successfully", "db_driver", cfg.DBDriver, "repositories", len(cfg.RepoPaths))

	// 2. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 3. Open the store and apply migrations
	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("Database connection established")

	// 4. Initialize application components
	appSyncer, err := app.NewSyncer(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	// 5. Start the syncer in a separate goroutine
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		appSyncer.Start(ctx)
	}()

	// 6. Serve the read API
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(st, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 7. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	case err := <-serveErr:
		if err != nil {
			cancel()
			<-syncDone
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	<-syncDone

	return nil
}
