//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"gitledger/internal/api"
	"gitledger/internal/app"
	"gitledger/internal/config"
	"gitledger/internal/model"
)

func setupTestDatabase(ctx context.Context, t *testing.T) string {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(context.Background()))
	})

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// setupTestRepository builds a two-commit repository whose origin points at a nested GitLab group.
func setupTestRepository(t *testing.T) string {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://gitlab.com/acme/platform/api.git"},
	})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	commit := func(name, content string, when time.Time) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: when}
		_, err = wt.Commit("change "+name, &gogit.CommitOptions{Author: sig, Committer: sig})
		require.NoError(t, err)
	}
	commit("README.md", "hello\n", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	commit("main.go", "package main\n", time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	return dir
}

func TestService_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	ctx := context.Background()
	cfg := &config.Config{
		DBDriver:        config.DriverPostgres,
		DBURL:           setupTestDatabase(ctx, t),
		RepoPaths:       []string{setupTestRepository(t)},
		SyncInterval:    time.Hour,
		SyncConcurrency: 2,
		GitTimeout:      time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	st, err := app.OpenStore(ctx, cfg, logger)
	require.NoError(t, err)
	defer st.Close()

	appSyncer, err := app.NewSyncer(cfg, st, logger)
	require.NoError(t, err)

	// --- ACT ---
	results := appSyncer.SyncAll(ctx, cfg.RepoPaths, model.SyncOptions{})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err())
	assert.Equal(t, 2, results[0].CommitsSynced)

	again := appSyncer.SyncAll(ctx, cfg.RepoPaths, model.SyncOptions{})
	require.NoError(t, again[0].Err())
	assert.True(t, again[0].Incremental)

	// --- ASSERT ---
	server := httptest.NewServer(api.NewRouter(st, logger))
	defer server.Close()

	key := "gitlab.com~acme~~platform~api"
	resp, err := http.Get(server.URL + "/v1/repos/" + key + "/commits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var commits []model.Commit
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&commits))
	require.Len(t, commits, 2)
	assert.Equal(t, 1, commits[0].ParentCount) // Order is by date DESC
	assert.Equal(t, 0, commits[1].ParentCount)

	state, err := st.GetRepositoryState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T12:00:00Z", state.FirstCommitSeenAt.Format(time.RFC3339))
	assert.Equal(t, "2024-01-02T12:00:00Z", state.LastCommitSeenAt.Format(time.RFC3339))
}
