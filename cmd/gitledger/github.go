// cmd/gitledger/github.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitledger/internal/app"
	"gitledger/internal/config"
	"gitledger/internal/github"
	"gitledger/internal/model"
)

// repositorySource is the part of the GitHub client the command needs.
type repositorySource interface {
	ListRepositories(ctx context.Context, owner string) ([]github.Repository, error)
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
}

type discoverFilter struct {
	includeArchived bool
	includeForks    bool
}

func newGithubCmd() *cobra.Command {
	var (
		doSync bool
		filter discoverFilter
	)
	cmd := &cobra.Command{
		Use:   "github OWNER[/NAME]",
		Short: "List the repositories of a GitHub organization or user",
		Long: `Github lists the repositories of an organization, or of a user when OWNER is
not an organization. OWNER/NAME selects a single repository. With --sync each
repository is cloned under CODE_DIR and synced.

GITHUB_TOKEN is used when set.

Examples:
  gitledger github kospex
  gitledger github kospex --sync
  gitledger github kospex/kospex --sync`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			client := github.NewClient(cfg.GithubToken, app.NewLogger(cfg.LogLevel))

			selected, err := discover(ctx, client, args[0], filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !doSync {
				for _, r := range selected {
					fmt.Fprintf(out, "%s/%s\t%s\n", r.Owner, r.Name, r.CloneURL)
				}
				fmt.Fprintf(out, "%d repositories\n", len(selected))
				return nil
			}

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()
			if sess.cfg.CodeDir == "" {
				return errors.New("CODE_DIR must be set to clone repositories")
			}

			results := make([]model.SyncResult, 0, len(selected))
			for _, r := range selected {
				results = append(results, sess.syncer.CloneAndSync(ctx, r.CloneURL, model.SyncOptions{}))
			}
			return printResults(out, results)
		},
	}
	cmd.Flags().BoolVar(&doSync, "sync", false, "Clone and sync every listed repository")
	cmd.Flags().BoolVar(&filter.includeArchived, "archived", false, "Include archived repositories")
	cmd.Flags().BoolVar(&filter.includeForks, "forks", false, "Include forks")
	return cmd
}

// discover resolves OWNER to all of its repositories and OWNER/NAME to that one repository.
// The archive and fork filters only apply to owner listings.
func discover(ctx context.Context, src repositorySource, target string, filter discoverFilter) ([]github.Repository, error) {
	if owner, name, ok := strings.Cut(target, "/"); ok {
		if owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("invalid repository %q, expected OWNER/NAME", target)
		}
		repo, err := src.GetRepository(ctx, owner, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get repository: %w", err)
		}
		return []github.Repository{*repo}, nil
	}

	repos, err := src.ListRepositories(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	var selected []github.Repository
	for _, r := range repos {
		if (r.Archived && !filter.includeArchived) || (r.Fork && !filter.includeForks) {
			continue
		}
		selected = append(selected, r)
	}
	return selected, nil
}
