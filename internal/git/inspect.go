// internal/git/inspect.go
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	custom_errors "gitledger/internal/errors"
)

// DefaultRemote is the remote whose URL identifies a repository.
const DefaultRemote = "origin"

// WorkingCopy is what a sync needs to know about a local repository.
type WorkingCopy struct {
	Path      string
	HeadHash  string
	RemoteURL string
}

// HasHead reports whether the working copy has at least one commit.
func (w WorkingCopy) HasHead() bool {
	return w.HeadHash != "" && w.HeadHash != custom_errors.NoHeadMarker
}

// Inspector reads HEAD and the origin URL of a local repository.
type Inspector interface {
	Inspect(ctx context.Context, path string) (WorkingCopy, error)
}

// GoGitInspector implements Inspector using the go-git library. It never writes to the repository.
type GoGitInspector struct {
	logger *slog.Logger
}

// NewGoGitInspector creates a new GoGitInspector.
func NewGoGitInspector(logger *slog.Logger) *GoGitInspector {
	return &GoGitInspector{logger: logger}
}

// Inspect opens the repository at path.
// A repository without commits yields a WorkingCopy whose HeadHash is the NO_HEAD marker
// together with ErrNoHeadCommit; its RemoteURL is still filled in.
func (g *GoGitInspector) Inspect(ctx context.Context, path string) (WorkingCopy, error) {
	if err := ctx.Err(); err != nil {
		return WorkingCopy{}, err
	}

	repo, err := gogit.PlainOpen(path)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return WorkingCopy{}, &custom_errors.NotAGitRepositoryError{Path: path}
		}
		return WorkingCopy{}, fmt.Errorf("open repository: %w", err)
	}

	wc := WorkingCopy{Path: path}

	origin, err := repo.Remote(DefaultRemote)
	switch {
	case errors.Is(err, gogit.ErrRemoteNotFound):
		g.logger.Warn("Repository has no origin remote", "path", path)
	case err != nil:
		return WorkingCopy{}, fmt.Errorf("read %s remote: %w", DefaultRemote, err)
	case len(origin.Config().URLs) > 0:
		wc.RemoteURL = origin.Config().URLs[0]
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			wc.HeadHash = custom_errors.NoHeadMarker
			return wc, custom_errors.ErrNoHeadCommit
		}
		return WorkingCopy{}, fmt.Errorf("get HEAD: %w", err)
	}
	wc.HeadHash = head.Hash().String()

	return wc, nil
}
