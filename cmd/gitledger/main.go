// cmd/gitledger/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gitledger/internal/app"
	"gitledger/internal/config"
	"gitledger/internal/store"
	"gitledger/internal/syncer"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gitledger",
		Short: "gitledger - git history ingestion",
		Long: `gitledger reads the commit history of local git working copies and stores it
keyed by a canonical repository identity derived from the origin remote URL.

Repeated syncs are incremental: only commits newer than the last stored one are read.`,
		SilenceUsage: true,
	}
	root.AddCommand(newSyncCmd(), newResolveCmd(), newCloneCmd(), newGithubCmd())
	return root
}

// session is the configured store and syncer shared by the subcommands that write.
type session struct {
	cfg    *config.Config
	store  store.Store
	syncer *syncer.Syncer
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := app.NewSyncer(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create syncer: %w", err)
	}
	return &session{cfg: cfg, store: st, syncer: s}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}
