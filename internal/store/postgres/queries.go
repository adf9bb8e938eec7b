// internal/store/postgres/queries.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gitledger/internal/model"
	"gitledger/internal/store"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the store statements against a pool or a transaction.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getRepositoryState = `
SELECT host, owner, name, remote_url, local_path, head_hash, last_sync_at, first_commit_seen_at, last_commit_seen_at
FROM repositories
WHERE repository_key = $1`

func (q *Queries) GetRepositoryState(ctx context.Context, repositoryKey string) (model.RepositoryState, error) {
	state, err := scanRepositoryState(q.db.QueryRow(ctx, getRepositoryState, repositoryKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RepositoryState{}, store.ErrNotFound
	}
	return state, err
}

const listRepositoryStates = `
SELECT host, owner, name, remote_url, local_path, head_hash, last_sync_at, first_commit_seen_at, last_commit_seen_at
FROM repositories
ORDER BY repository_key`

func (q *Queries) ListRepositoryStates(ctx context.Context) ([]model.RepositoryState, error) {
	rows, err := q.db.Query(ctx, listRepositoryStates)
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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (repository_key) DO UPDATE SET
    remote_url = EXCLUDED.remote_url,
    local_path = EXCLUDED.local_path,
    head_hash = EXCLUDED.head_hash,
    last_sync_at = EXCLUDED.last_sync_at,
    first_commit_seen_at = EXCLUDED.first_commit_seen_at,
    last_commit_seen_at = EXCLUDED.last_commit_seen_at`

func (q *Queries) UpsertRepositoryState(ctx context.Context, s model.RepositoryState) error {
	id := s.Identity
	_, err := q.db.Exec(ctx, upsertRepositoryState,
		id.Key(), id.Host, id.Owner, id.Name,
		s.RemoteURL, s.LocalPath, s.HeadHash, s.LastSyncAt,
		store.FormatTime(s.FirstCommitSeenAt), store.FormatTime(s.LastCommitSeenAt),
	)
	return err
}

const upsertCommit = `
INSERT INTO commits (repository_key, hash, host, owner, name, author_name, author_email, author_when,
    committer_name, committer_email, committer_when, committer_ts, parent_count, file_count, cycle_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (repository_key, hash) DO UPDATE SET
    author_name = EXCLUDED.author_name,
    author_email = EXCLUDED.author_email,
    author_when = EXCLUDED.author_when,
    committer_name = EXCLUDED.committer_name,
    committer_email = EXCLUDED.committer_email,
    committer_when = EXCLUDED.committer_when,
    committer_ts = EXCLUDED.committer_ts,
    parent_count = EXCLUDED.parent_count,
    file_count = EXCLUDED.file_count,
    cycle_time = EXCLUDED.cycle_time`

func (q *Queries) UpsertCommit(ctx context.Context, c model.Commit) error {
	id := c.Identity
	_, err := q.db.Exec(ctx, upsertCommit,
		id.Key(), c.Hash, id.Host, id.Owner, id.Name,
		c.AuthorName, c.AuthorEmail, store.FormatTime(c.AuthorWhen),
		c.CommitterName, c.CommitterEmail, store.FormatTime(c.CommitterWhen), c.CommitterWhen.Unix(),
		c.ParentCount, c.FileCount, c.CycleTime,
	)
	return err
}

const upsertFileChange = `
INSERT INTO commit_files (repository_key, hash, file_path, path_change, additions, deletions, extension, committer_when)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (repository_key, hash, file_path) DO UPDATE SET
    path_change = EXCLUDED.path_change,
    additions = EXCLUDED.additions,
    deletions = EXCLUDED.deletions,
    extension = EXCLUDED.extension,
    committer_when = EXCLUDED.committer_when`

func (q *Queries) UpsertFileChange(ctx context.Context, f model.FileChange) error {
	_, err := q.db.Exec(ctx, upsertFileChange,
		f.Identity.Key(), f.CommitHash, f.FilePath, f.PathChange,
		f.Additions, f.Deletions, f.Extension, store.FormatTime(f.CommitterWhen),
	)
	return err
}

const commitBounds = `
SELECT
    COALESCE((SELECT committer_when FROM commits WHERE repository_key = $1 ORDER BY committer_ts ASC, hash LIMIT 1), ''),
    COALESCE((SELECT committer_when FROM commits WHERE repository_key = $1 ORDER BY committer_ts DESC, hash LIMIT 1), '')`

func (q *Queries) CommitBounds(ctx context.Context, repositoryKey string) (time.Time, time.Time, error) {
	var firstText, lastText string
	if err := q.db.QueryRow(ctx, commitBounds, repositoryKey).Scan(&firstText, &lastText); err != nil {
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
WHERE repository_key = $1
ORDER BY committer_ts DESC, hash
LIMIT $2`

func (q *Queries) ListCommits(ctx context.Context, repositoryKey string, limit int) ([]model.Commit, error) {
	rows, err := q.db.Query(ctx, listCommits, repositoryKey, store.ClampLimit(limit))
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
WHERE repository_key = $1 AND hash = $2
ORDER BY file_path`

func (q *Queries) ListFileChanges(ctx context.Context, repositoryKey, hash string) ([]model.FileChange, error) {
	id, err := model.ParseKey(repositoryKey)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx, listFileChanges, repositoryKey, hash)
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
WHERE repository_key = $1
GROUP BY author_email
ORDER BY COUNT(*) DESC, author_email
LIMIT $2`

func (q *Queries) TopAuthors(ctx context.Context, repositoryKey string, limit int) ([]model.AuthorActivity, error) {
	rows, err := q.db.Query(ctx, topAuthors, repositoryKey, store.ClampLimit(limit))
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

func scanRepositoryState(row pgx.Row) (model.RepositoryState, error) {
	var s model.RepositoryState
	var firstText, lastText string
	if err := row.Scan(&s.Identity.Host, &s.Identity.Owner, &s.Identity.Name, &s.RemoteURL, &s.LocalPath,
		&s.HeadHash, &s.LastSyncAt, &firstText, &lastText); err != nil {
		return model.RepositoryState{}, err
	}
	var err error
	if s.FirstCommitSeenAt, err = store.ParseTime(firstText); err != nil {
		return model.RepositoryState{}, err
	}
	if s.LastCommitSeenAt, err = store.ParseTime(lastText); err != nil {
		return model.RepositoryState{}, err
	}
	return s, nil
}
