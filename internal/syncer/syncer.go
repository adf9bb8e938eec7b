// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "gitledger/internal/errors"
	"gitledger/internal/git"
	"gitledger/internal/gitlog"
	"gitledger/internal/model"
	"gitledger/internal/remote"
	"gitledger/internal/store"
)

const (
	// Number of repositories to sync in parallel
	defaultConcurrency = 5
)

// GitClient runs git against a local working copy.
type GitClient interface {
	Log(ctx context.Context, dir string, w git.Window) ([]model.Commit, error)
	Clone(ctx context.Context, url, dest string) error
	Pull(ctx context.Context, dir string) error
}

// Options configures a Syncer.
type Options struct {
	RepoPaths          []string
	CodeDir            string
	SyncInterval       time.Duration
	Concurrency        int
	AllowLowConfidence bool
}

// Syncer orchestrates reading git history and storing it.
type Syncer struct {
	store     store.Store
	inspector git.Inspector
	git       GitClient
	resolver  *remote.Resolver
	logger    *slog.Logger
	opts      Options
	locks     *keyLocks
	now       func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(st store.Store, inspector git.Inspector, gitClient GitClient, logger *slog.Logger, opts Options) (*Syncer, error) {
	paths, err := cleanRepoPaths(opts.RepoPaths)
	if err != nil {
		return nil, err
	}
	opts.RepoPaths = paths
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	return &Syncer{
		store:     st,
		inspector: inspector,
		git:       gitClient,
		resolver:  remote.NewResolver(),
		logger:    logger,
		opts:      opts,
		locks:     newKeyLocks(),
		now:       time.Now,
	}, nil
}

// Start begins the continuous synchronization process.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.opts.SyncInterval.String(), "concurrency", s.opts.Concurrency, "repositories", len(s.opts.RepoPaths))
	ticker := time.NewTicker(s.opts.SyncInterval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle performs a synchronization pass for all configured repositories concurrently.
func (s *Syncer) runSyncCycle(ctx context.Context) {
	s.logger.Info("Starting new sync cycle")
	results := s.SyncAll(ctx, s.opts.RepoPaths, model.SyncOptions{})

	failed := 0
	for _, r := range results {
		if r.Err() != nil {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Error("Sync cycle finished with errors", "repositories", len(results), "failed", failed)
	} else {
		s.logger.Info("Sync cycle finished", "repositories", len(results))
	}
}

// SyncAll syncs every path concurrently. A failing repository never stops the others;
// its error is reported in its own result.
func (s *Syncer) SyncAll(ctx context.Context, paths []string, opts model.SyncOptions) []model.SyncResult {
	results := make([]model.SyncResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = s.Sync(gctx, path, opts)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Sync reads the history of the working copy at localPath and stores it.
// Without an explicit FromDate the sync continues from the last stored commit.
func (s *Syncer) Sync(ctx context.Context, localPath string, opts model.SyncOptions) model.SyncResult {
	result := model.SyncResult{LocalPath: localPath}
	if err := s.syncRepo(ctx, localPath, opts, &result); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("Failed to sync repository", "path", localPath, "repository_key", result.RepositoryKey, "error", err)
		}
		result.Errors = append(result.Errors, err)
	}
	return result
}

func (s *Syncer) syncRepo(ctx context.Context, localPath string, opts model.SyncOptions, result *model.SyncResult) error {
	wc, err := s.inspector.Inspect(ctx, localPath)
	if err != nil && !errors.Is(err, custom_errors.ErrNoHeadCommit) {
		return err
	}
	wc.RemoteURL = remote.StripCredentials(wc.RemoteURL)
	if !wc.HasHead() {
		wc.HeadHash = custom_errors.NoHeadMarker
	}
	result.HeadHash = wc.HeadHash

	id, err := s.resolveIdentity(wc.RemoteURL)
	if err != nil {
		return err
	}
	key := id.Key()
	result.RepositoryKey = key
	logger := s.logger.With("repository_key", key, "path", localPath)

	unlock := s.locks.lock(key)
	defer unlock()

	window, incremental, err := s.fetchWindow(ctx, key, opts)
	if err != nil {
		return err
	}
	result.Incremental = incremental

	var commits []model.Commit
	if !wc.HasHead() {
		logger.Info("Repository has no commits yet")
	} else {
		logger.Info("Syncing repository", "window", window.Args(), "incremental", incremental)
		commits, err = s.git.Log(ctx, localPath, window)
		if err != nil {
			return err
		}
	}
	attachIdentity(id, commits)

	// A cancelled sync must not store a partial batch.
	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(q store.Querier) error {
		return s.storeBatch(ctx, q, wc, id, commits)
	})
	if err != nil {
		return fmt.Errorf("store sync batch: %w", err)
	}

	result.CommitsSynced = len(commits)
	for _, c := range commits {
		result.FilesSynced += len(c.Files)
	}
	logger.Info("Repository synced", "commits", result.CommitsSynced, "files", result.FilesSynced)
	return nil
}

// resolveIdentity expects remoteURL without credentials, since it ends up in logs and errors.
func (s *Syncer) resolveIdentity(remoteURL string) (model.RepositoryIdentity, error) {
	res, err := s.resolver.Resolve(remoteURL)
	if err != nil {
		return model.RepositoryIdentity{}, err
	}
	if res.Confidence == remote.ConfidenceLow {
		if !s.opts.AllowLowConfidence {
			return model.RepositoryIdentity{}, &custom_errors.UnresolvableRemoteURLError{
				URL:    remoteURL,
				Reason: "only the " + res.Matcher + " matcher accepted it",
			}
		}
		s.logger.Warn("Using low confidence remote resolution", "url", remoteURL, "repository_key", res.Identity.Key())
	}
	return res.Identity, nil
}

// fetchWindow picks the log window: explicit dates win, then the stored cursor, then the limit.
func (s *Syncer) fetchWindow(ctx context.Context, key string, opts model.SyncOptions) (git.Window, bool, error) {
	if !opts.FromDate.IsZero() {
		return git.WindowFromOptions(opts), false, nil
	}

	state, err := s.store.GetRepositoryState(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return git.WindowFromOptions(opts), false, nil
	}
	if err != nil {
		return git.Window{}, false, fmt.Errorf("get repository state: %w", err)
	}
	if state.LastCommitSeenAt.IsZero() {
		return git.WindowFromOptions(opts), false, nil
	}

	opts.FromDate = state.LastCommitSeenAt
	return git.WindowFromOptions(opts), true, nil
}

func (s *Syncer) storeBatch(ctx context.Context, q store.Querier, wc git.WorkingCopy, id model.RepositoryIdentity, commits []model.Commit) error {
	for _, c := range commits {
		if err := q.UpsertCommit(ctx, c); err != nil {
			return fmt.Errorf("upsert commit %s: %w", c.Hash, err)
		}
		for _, f := range c.Files {
			if err := q.UpsertFileChange(ctx, f); err != nil {
				return fmt.Errorf("upsert file change %s %s: %w", c.Hash, f.FilePath, err)
			}
		}
	}

	first, last, err := q.CommitBounds(ctx, id.Key())
	if err != nil {
		return fmt.Errorf("commit bounds: %w", err)
	}

	return q.UpsertRepositoryState(ctx, model.RepositoryState{
		Identity:          id,
		RemoteURL:         wc.RemoteURL,
		LocalPath:         wc.Path,
		HeadHash:          wc.HeadHash,
		LastSyncAt:        s.now().UTC(),
		FirstCommitSeenAt: first,
		LastCommitSeenAt:  last,
	})
}

// CloneAndSync clones url under the code directory, or pulls it when already present, then syncs it.
func (s *Syncer) CloneAndSync(ctx context.Context, url string, opts model.SyncOptions) model.SyncResult {
	dest, err := s.checkout(ctx, url)
	if err != nil {
		s.logger.Error("Failed to check out repository", "url", remote.StripCredentials(url), "error", err)
		return model.SyncResult{LocalPath: dest, Errors: []error{err}}
	}
	return s.Sync(ctx, dest, opts)
}

func (s *Syncer) checkout(ctx context.Context, url string) (string, error) {
	if s.opts.CodeDir == "" {
		return "", errors.New("no code directory configured")
	}
	id, err := s.resolveIdentity(remote.StripCredentials(url))
	if err != nil {
		return "", err
	}
	dest := CheckoutPath(s.opts.CodeDir, id)

	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		return dest, s.git.Pull(ctx, dest)
	}
	return dest, s.git.Clone(ctx, url, dest)
}

// CheckoutPath is where a repository is cloned under codeDir: <host>/<owner>/<name>.
func CheckoutPath(codeDir string, id model.RepositoryIdentity) string {
	return filepath.Join(codeDir, id.Host, filepath.FromSlash(id.Owner), id.Name)
}

func attachIdentity(id model.RepositoryIdentity, commits []model.Commit) {
	for i := range commits {
		commits[i].Identity = id
		commits[i].FileCount = len(commits[i].Files)
		for j := range commits[i].Files {
			f := &commits[i].Files[j]
			f.Identity = id
			f.CommitHash = commits[i].Hash
			f.Extension = gitlog.Extension(f.FilePath)
		}
	}
}

func cleanRepoPaths(paths []string) ([]string, error) {
	var cleaned []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid repository path %q: %w", p, err)
		}
		cleaned = append(cleaned, abs)
	}
	return cleaned, nil
}
