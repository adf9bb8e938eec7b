// cmd/gitledger/sync.go
package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gitledger/internal/model"
)

type syncFlags struct {
	limit int
	from  string
	to    string
}

func newSyncCmd() *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "sync [path...]",
		Short: "Sync the history of local repositories",
		Long: `Sync reads the commit history of each local working copy and stores it.

Without paths the REPO_PATHS setting is used. Without --from the sync continues
from the newest stored commit of each repository.

Examples:
  gitledger sync /code/github.com/kospex/kospex
  gitledger sync --from 2024-01-01 --to 2024-06-30 /code/repo
  gitledger sync -n 100 /code/repo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			sess, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close()

			paths := args
			if len(paths) == 0 {
				paths = sess.cfg.RepoPaths
			}
			if len(paths) == 0 {
				return errors.New("no repository paths given and REPO_PATHS is empty")
			}

			results := sess.syncer.SyncAll(cmd.Context(), paths, opts)
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Only sync the most recent N commits")
	cmd.Flags().StringVar(&flags.from, "from", "", "Only sync commits after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&flags.to, "to", "", "Only sync commits before this date, used together with --from")
	return cmd
}

func (f syncFlags) options() (model.SyncOptions, error) {
	opts := model.SyncOptions{Limit: f.limit}
	var err error
	if opts.FromDate, err = parseDate(f.from); err != nil {
		return opts, fmt.Errorf("invalid --from: %w", err)
	}
	if opts.ToDate, err = parseDate(f.to); err != nil {
		return opts, fmt.Errorf("invalid --to: %w", err)
	}
	if f.limit < 0 {
		return opts, errors.New("--limit must not be negative")
	}
	return opts, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// printResults writes one line per repository and returns an error when any of them failed.
func printResults(w io.Writer, results []model.SyncResult) error {
	failed := 0
	for _, r := range results {
		if err := r.Err(); err != nil {
			failed++
			fmt.Fprintf(w, "✗ %s: %v\n", r.LocalPath, err)
			continue
		}
		mode := "full"
		if r.Incremental {
			mode = "incremental"
		}
		fmt.Fprintf(w, "✓ %s (%s): %d commits, %d files, %s\n", r.RepositoryKey, mode, r.CommitsSynced, r.FilesSynced, r.LocalPath)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed to sync", failed, len(results))
	}
	return nil
}
