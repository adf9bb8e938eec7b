// internal/model/models.go
package model

import (
	"time"
)

// Commit is the metadata of a single commit as reported by git log.
// The commit message is deliberately not captured.
type Commit struct {
	Identity       RepositoryIdentity `json:"-"`
	Hash           string             `json:"hash"`
	AuthorName     string             `json:"author_name"`
	AuthorEmail    string             `json:"author_email"`
	AuthorWhen     time.Time          `json:"author_when"`
	CommitterName  string             `json:"committer_name"`
	CommitterEmail string             `json:"committer_email"`
	CommitterWhen  time.Time          `json:"committer_when"`
	ParentCount    int                `json:"parent_count"`
	FileCount      int                `json:"file_count"`
	// CycleTime is the number of seconds between authoring and committing.
	CycleTime int64        `json:"cycle_time"`
	Files     []FileChange `json:"files,omitempty"`
}

// RepositoryKey returns the key of the repository the commit belongs to.
func (c Commit) RepositoryKey() string {
	return c.Identity.Key()
}

// FileChange is one numstat entry of a commit.
type FileChange struct {
	Identity   RepositoryIdentity `json:"-"`
	CommitHash string             `json:"hash"`
	FilePath   string             `json:"file_path"`
	// PathChange holds the raw "old => new" text for renames and is empty otherwise.
	PathChange    string    `json:"path_change,omitempty"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	Extension     string    `json:"extension"`
	CommitterWhen time.Time `json:"committer_when"`
}

// RepositoryState is the per-repository sync cursor.
type RepositoryState struct {
	Identity          RepositoryIdentity `json:"identity"`
	RemoteURL         string             `json:"remote_url"`
	LocalPath         string             `json:"local_path"`
	HeadHash          string             `json:"head_hash"`
	LastSyncAt        time.Time          `json:"last_sync_at"`
	FirstCommitSeenAt time.Time          `json:"first_commit_seen_at,omitzero"`
	LastCommitSeenAt  time.Time          `json:"last_commit_seen_at,omitzero"`
}

// RepositoryKey returns the key of the repository.
func (s RepositoryState) RepositoryKey() string {
	return s.Identity.Key()
}

// SyncOptions restricts the commit window of a sync. Zero values mean "not set".
type SyncOptions struct {
	Limit    int
	FromDate time.Time
	ToDate   time.Time
}

// SyncResult reports the outcome of syncing one repository.
type SyncResult struct {
	LocalPath     string  `json:"local_path"`
	RepositoryKey string  `json:"repository_key,omitempty"`
	HeadHash      string  `json:"head_hash,omitempty"`
	Incremental   bool    `json:"incremental"`
	CommitsSynced int     `json:"commits_synced"`
	FilesSynced   int     `json:"files_synced"`
	Errors        []error `json:"-"`
}

// Err returns the first error of the result, if any.
func (r SyncResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// AuthorActivity is the number of commits by one author email in a repository.
type AuthorActivity struct {
	AuthorEmail string    `json:"author_email"`
	AuthorName  string    `json:"author_name"`
	Commits     int64     `json:"commits"`
	LastCommit  time.Time `json:"last_commit"`
}
