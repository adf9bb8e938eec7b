// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"gitledger/internal/model"
)

// ErrNotFound is returned when a keyed lookup has no row.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps list queries that are called without a limit.
const DefaultListLimit = 100

// Querier is the write side used by a sync. Every upsert overwrites the row with the same key.
type Querier interface {
	GetRepositoryState(ctx context.Context, repositoryKey string) (model.RepositoryState, error)
	UpsertRepositoryState(ctx context.Context, state model.RepositoryState) error
	UpsertCommit(ctx context.Context, commit model.Commit) error
	UpsertFileChange(ctx context.Context, change model.FileChange) error
	// CommitBounds returns the earliest and latest committer time stored for a repository.
	// Both are zero when the repository has no commits.
	CommitBounds(ctx context.Context, repositoryKey string) (first, last time.Time, err error)
}

// Reader is the read side served by the HTTP API.
type Reader interface {
	GetRepositoryState(ctx context.Context, repositoryKey string) (model.RepositoryState, error)
	ListRepositoryStates(ctx context.Context) ([]model.RepositoryState, error)
	ListCommits(ctx context.Context, repositoryKey string, limit int) ([]model.Commit, error)
	ListFileChanges(ctx context.Context, repositoryKey, hash string) ([]model.FileChange, error)
	TopAuthors(ctx context.Context, repositoryKey string, limit int) ([]model.AuthorActivity, error)
}

// Store is a durable repository state store.
type Store interface {
	Querier
	Reader
	// InTx runs fn in a single transaction. The transaction is rolled back when fn returns an error.
	InTx(ctx context.Context, fn func(q Querier) error) error
	Close() error
}

// Timestamps are persisted as RFC 3339 text so the original UTC offset survives a round trip.
const timeLayout = time.RFC3339

// FormatTime renders t for storage. The zero time is stored as an empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// ClampLimit returns limit, or DefaultListLimit when limit is not positive.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
