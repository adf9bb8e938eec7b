// internal/store/sqlite/queries.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitledger/internal/model"
	"gitledger/internal/store"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Queries runs the store statements against the connection or a transaction.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getRepositoryState = `
SELECT host, owner, name, remote_url, local_path, head_hash, last_sync_at, first_commit_seen_at, last_commit_seen_at
FROM repositories
WHERE repository_key = ?`

func (q *Queries) GetRepositoryState(ctx context.Context, repositoryKey string) (model.RepositoryState, error) {
	state, err := scanRepositoryState(q.db.QueryRowContext(ctx, getRepositoryState, repositoryKey))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RepositoryState{}, store.ErrNotFound
	}
	return state, err
}

const listRepositoryStates = `
SELECT host, owner, name, remote_url, local_path, head_hash, last_sync_at, first_commit_seen_at, last_commit_seen_at
FROM repositories
ORDER BY repository_key`

func (q *Queries) ListRepositoryStates(ctx context.Context) ([]model.RepositoryState, error) {
	rows, err := q.db.QueryContext(ctx, listRepositoryStates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []model.RepositoryState{}
	for rows.Next() {
		state, err := scanRepositoryState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

const upsertRepositoryState = `
INSERT INTO repositories (repository_key, host, owner, name, remote_url, local_path, head_hash, last_sync_at, first_commit_seen_at, last_commit_seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (repository_key) DO UPDATE SET
    remote_url = excluded.remote_url,
    local_path = excluded.local_path,
    head_hash = excluded.head_hash,
    last_sync_at = excluded.last_sync_at,
    first_commit_seen_at = excluded.first_commit_seen_at,
    last_commit_seen_at = excluded.last_commit_seen_at`

func (q *Queries) UpsertRepositoryState(ctx context.Context, s model.RepositoryState) error {
	id := s.Identity
	_, err := q.db.ExecContext(ctx, upsertRepositoryState,
		id.Key(), id.Host, id.Owner, id.Name,
		s.RemoteURL, s.LocalPath, s.HeadHash, store.FormatTime(s.LastSyncAt),
		store.FormatTime(s.FirstCommitSeenAt), store.FormatTime(s.LastCommitSeenAt),
	)
	return err
}

const upsertCommit = `
INSERT INTO commits (repository_key, hash, host, owner, name, author_name, author_email, author_when,
    committer_name, committer_email, committer_when, committer_ts, parent_count, file_count, cycle_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (repository_key, hash) DO UPDATE SET
    author_name = excluded.author_name,
    author_email = excluded.author_email,
    author_when = excluded.author_when,
    committer_name = excluded.committer_name,
    committer_email = excluded.committer_email,
    committer_when = excluded.committer_when,
    committer_ts = excluded.committer_ts,
    parent_count = excluded.parent_count,
    file_count = excluded.file_count,
    cycle_time = excluded.cycle_time`

func (q *Queries) UpsertCommit(ctx context.Context, c model.Commit) error {
	id := c.Identity
	_, err := q.db.ExecContext(ctx, upsertCommit,
		id.Key(), c.Hash, id.Host, id.Owner, id.Name,
		c.AuthorName, c.AuthorEmail, store.FormatTime(c.AuthorWhen),
		c.CommitterName, c.CommitterEmail, store.FormatTime(c.CommitterWhen), c.CommitterWhen.Unix(),
		c.ParentCount, c.FileCount, c.CycleTime,
	)
	return err
}

const upsertFileChange = `
INSERT INTO commit_files (repository_key, hash, file_path, path_change, additions, deletions, extension, committer_when)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (repository_key, hash, file_path) DO UPDATE SET
    path_change = excluded.path_change,
    additions = excluded.additions,
    deletions = excluded.deletions,
    extension = excluded.extension,
    committer_when = excluded.committer_when`

func (q *Queries) UpsertFileChange(ctx context.Context, f model.FileChange) error {
	_, err := q.db.ExecContext(ctx, upsertFileChange,
		f.Identity.Key(), f.CommitHash, f.FilePath, f.PathChange,
		f.Additions, f.Deletions, f.Extension, store.FormatTime(f.CommitterWhen),
	)
	return err
}

const commitBounds = `
SELECT
    COALESCE((SELECT committer_when FROM commits WHERE repository_key = ? ORDER BY committer_ts ASC, hash LIMIT 1), ''),
    COALESCE((SELECT committer_when FROM commits WHERE repository_key = ? ORDER BY committer_ts DESC, hash LIMIT 1), '')`

func (q *Queries) CommitBounds(ctx context.Context, repositoryKey string) (time.Time, time.Time, error) {
	var firstText, lastText string
	if err := q.db.QueryRowContext(ctx, commitBounds, repositoryKey, repositoryKey).Scan(&firstText, &lastText); err != nil {
		return time.Time{}, time.Time{}, err
	}
	first, err := store.ParseTime(firstText)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse first commit time: %w", err)
	}
	last, err := store.ParseTime(lastText)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse last commit time: %w", err)
	}
	return first, last, nil
}

const listCommits = `
SELECT host, owner, name, hash, author_name, author_email, author_when, committer_name, committer_email,
    committer_when, parent_count, file_count, cycle_time
FROM commits
WHERE repository_key = ?
ORDER BY committer_ts DESC, hash
LIMIT ?`

func (q *Queries) ListCommits(ctx context.Context, repositoryKey string, limit int) ([]model.Commit, error) {
	rows, err := q.db.QueryContext(ctx, listCommits, repositoryKey, store.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commits := []model.Commit{}
	for rows.Next() {
		var c model.Commit
		var authorWhen, committerWhen string
		if err := rows.Scan(&c.Identity.Host, &c.Identity.Owner, &c.Identity.Name, &c.Hash,
			&c.AuthorName, &c.AuthorEmail, &authorWhen, &c.CommitterName, &c.CommitterEmail,
			&committerWhen, &c.ParentCount, &c.FileCount, &c.CycleTime); err != nil {
			return nil, err
		}
		if c.AuthorWhen, err = store.ParseTime(authorWhen); err != nil {
			return nil, err
		}
		if c.CommitterWhen, err = store.ParseTime(committerWhen); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

const listFileChanges = `
SELECT file_path, path_change, additions, deletions, extension, committer_when
FROM commit_files
WHERE repository_key = ? AND hash = ?
ORDER BY file_path`

func (q *Queries) ListFileChanges(ctx context.Context, repositoryKey, hash string) ([]model.FileChange, error) {
	id, err := model.ParseKey(repositoryKey)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, listFileChanges, repositoryKey, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []model.FileChange{}
	for rows.Next() {
		f := model.FileChange{Identity: id, CommitHash: hash}
		var committerWhen string
		if err := rows.Scan(&f.FilePath, &f.PathChange, &f.Additions, &f.Deletions, &f.Extension, &committerWhen); err != nil {
			return nil, err
		}
		if f.CommitterWhen, err = store.ParseTime(committerWhen); err != nil {
			return nil, err
		}
		changes = append(changes, f)
	}
	return changes, rows.Err()
}

const topAuthors = `
SELECT author_email, MAX(author_name), COUNT(*), MAX(committer_ts)
FROM commits
WHERE repository_key = ?
GROUP BY author_email
ORDER BY COUNT(*) DESC, author_email
LIMIT ?`

func (q *Queries) TopAuthors(ctx context.Context, repositoryKey string, limit int) ([]model.AuthorActivity, error) {
	rows, err := q.db.QueryContext(ctx, topAuthors, repositoryKey, store.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authors := []model.AuthorActivity{}
	for rows.Next() {
		var a model.AuthorActivity
		var lastTS int64
		if err := rows.Scan(&a.AuthorEmail, &a.AuthorName, &a.Commits, &lastTS); err != nil {
			return nil, err
		}
		a.LastCommit = time.Unix(lastTS, 0).UTC()
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func scanRepositoryState(row rowScanner) (model.RepositoryState, error) {
	var s model.RepositoryState
	var lastSyncText, firstText, lastText string
	if err := row.Scan(&s.Identity.Host, &s.Identity.Owner, &s.Identity.Name, &s.RemoteURL, &s.LocalPath,
		&s.HeadHash, &lastSyncText, &firstText, &lastText); err != nil {
		return model.RepositoryState{}, err
	}
	var err error
	if s.LastSyncAt, err = store.ParseTime(lastSyncText); err != nil {
		return model.RepositoryState{}, err
	}
	if s.FirstCommitSeenAt, err = store.ParseTime(firstText); err != nil {
		return model.RepositoryState{}, err
	}
	if s.LastCommitSeenAt, err = store.ParseTime(lastText); err != nil {
		return model.RepositoryState{}, err
	}
	return s, nil
}
