// internal/git/client.go
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gitledger/internal/gitlog"
	"gitledger/internal/model"
	"gitledger/internal/remote"
)

// Client runs the git commands the sync needs.
type Client struct {
	runner Runner
	logger *slog.Logger
}

// NewClient creates a new Client instance on top of runner.
func NewClient(runner Runner, logger *slog.Logger) *Client {
	return &Client{runner: runner, logger: logger}
}

// quotePathOff makes git print non-ASCII paths verbatim instead of as quoted octal escapes.
var quotePathOff = []string{"-c", "core.quotePath=false"}

// LogArgs returns the arguments of the commit log invocation for a window.
func LogArgs(w Window) []string {
	args := append(append([]string{}, quotePathOff...), "log", "--pretty=format:"+gitlog.PrettyFormat, "--numstat")
	return append(args, w.Args()...)
}

// ParentArgs returns the arguments of the parent listing invocation for a window.
func ParentArgs(w Window) []string {
	args := []string{"log", "--format=" + gitlog.ParentsFormat}
	return append(args, w.Args()...)
}

// Log returns the commits of the repository at dir that fall in the window,
// newest first, with their parent counts.
// Nothing is returned unless both invocations and the parse succeed.
func (c *Client) Log(ctx context.Context, dir string, w Window) ([]model.Commit, error) {
	out, err := c.runner.Run(ctx, dir, LogArgs(w)...)
	if err != nil {
		return nil, err
	}
	commits, err := gitlog.Parse(string(out))
	if err != nil {
		return nil, fmt.Errorf("parse git log of %s: %w", dir, err)
	}
	if len(commits) == 0 {
		return commits, nil
	}

	parentsOut, err := c.runner.Run(ctx, dir, ParentArgs(w)...)
	if err != nil {
		return nil, err
	}
	parents := gitlog.ParseParents(string(parentsOut))
	for i := range commits {
		commits[i].ParentCount = parents[commits[i].Hash]
	}

	c.logger.Debug("Read git log", "dir", dir, "window", w.Args(), "commits", len(commits))
	return commits, nil
}

// Clone clones url into dest, creating the parent directory when needed.
func (c *Client) Clone(ctx context.Context, url, dest string) error {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}
	c.logger.Info("Cloning repository", "url", remote.StripCredentials(url), "dest", dest)
	_, err := c.runner.Run(ctx, parent, "clone", url, dest)
	return err
}

// Pull fast-forwards the working copy at dir.
func (c *Client) Pull(ctx context.Context, dir string) error {
	c.logger.Info("Pulling repository", "dir", dir)
	_, err := c.runner.Run(ctx, dir, "pull", "--ff-only")
	return err
}
