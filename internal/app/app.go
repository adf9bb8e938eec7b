// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gitledger/internal/config"
	"gitledger/internal/git"
	"gitledger/internal/store"
	"gitledger/internal/store/postgres"
	"gitledger/internal/store/sqlite"
	"gitledger/internal/syncer"
)

// NewLogger returns the JSON logger used by every binary, with its level taken from level.
func NewLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	SetLogLevel(level, logLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// SetLogLevel maps a configured level name onto v. Unknown names mean info.
func SetLogLevel(level string, v *slog.LevelVar) {
	switch strings.ToLower(level) {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

// OpenStore opens the configured store. PostgreSQL migrations are applied before connecting.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.DBURL); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		logger.Info("Database migrations applied successfully")
		return postgres.Open(ctx, cfg.DBURL, logger)
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewSyncer wires the git subprocess client and the go-git inspector into a syncer over st.
func NewSyncer(cfg *config.Config, st store.Store, logger *slog.Logger) (*syncer.Syncer, error) {
	runner := git.NewExecRunner(cfg.GitTimeout, logger)
	return syncer.NewSyncer(st, git.NewGoGitInspector(logger), git.NewClient(runner, logger), logger, syncer.Options{
		RepoPaths:          cfg.RepoPaths,
		CodeDir:            cfg.CodeDir,
		SyncInterval:       cfg.SyncInterval,
		Concurrency:        cfg.SyncConcurrency,
		AllowLowConfidence: cfg.AllowLowConfidence,
	})
}
