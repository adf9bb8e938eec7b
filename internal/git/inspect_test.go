// internal/git/inspect_test.go
package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "gitledger/internal/errors"
)

func initRepo(t *testing.T, originURL string) (string, *gogit.Repository) {
	t.Helper()
	repoPath := filepath.Join(t.TempDir(), "repo")

	repo, err := gogit.PlainInit(repoPath, false)
	require.NoError(t, err)

	if originURL != "" {
		_, err = repo.CreateRemote(&config.RemoteConfig{Name: DefaultRemote, URLs: []string{originURL}})
		require.NoError(t, err)
	}
	return repoPath, repo
}

func commitFile(t *testing.T, repoPath string, repo *gogit.Repository, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, name), []byte(content), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("add "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestGoGitInspector_Inspect(t *testing.T) {
	ctx := context.Background()
	inspector := NewGoGitInspector(testLogger())

	t.Run("reads head and origin", func(t *testing.T) {
		repoPath, repo := initRepo(t, "git@github.com:kospex/kospex.git")
		hash := commitFile(t, repoPath, repo, "README.md", "# test\n")

		wc, err := inspector.Inspect(ctx, repoPath)

		require.NoError(t, err)
		assert.Equal(t, repoPath, wc.Path)
		assert.Equal(t, hash, wc.HeadHash)
		assert.Equal(t, "git@github.com:kospex/kospex.git", wc.RemoteURL)
		assert.True(t, wc.HasHead())
	})

	t.Run("repository without commits", func(t *testing.T) {
		repoPath, _ := initRepo(t, "https://github.com/kospex/empty.git")

		wc, err := inspector.Inspect(ctx, repoPath)

		require.ErrorIs(t, err, custom_errors.ErrNoHeadCommit)
		assert.Equal(t, custom_errors.NoHeadMarker, wc.HeadHash)
		assert.Equal(t, "https://github.com/kospex/empty.git", wc.RemoteURL)
		assert.False(t, wc.HasHead())
	})

	t.Run("repository without origin", func(t *testing.T) {
		repoPath, repo := initRepo(t, "")
		commitFile(t, repoPath, repo, "a.txt", "a")

		wc, err := inspector.Inspect(ctx, repoPath)

		require.NoError(t, err)
		assert.Empty(t, wc.RemoteURL)
	})

	t.Run("plain directory", func(t *testing.T) {
		dir := t.TempDir()

		_, err := inspector.Inspect(ctx, dir)

		var notRepo *custom_errors.NotAGitRepositoryError
		require.True(t, errors.As(err, &notRepo))
		assert.Equal(t, dir, notRepo.Path)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := inspector.Inspect(ctx, "/nonexistent/path")

		var notRepo *custom_errors.NotAGitRepositoryError
		assert.True(t, errors.As(err, &notRepo))
	})
}

func TestExecRunner_Run(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	ctx := context.Background()
	runner := NewExecRunner(10*time.Second, testLogger())

	t.Run("runs in the given directory", func(t *testing.T) {
		repoPath, repo := initRepo(t, "https://github.com/kospex/kospex.git")
		hash := commitFile(t, repoPath, repo, "main.go", "package main\n")

		out, err := runner.Run(ctx, repoPath, "rev-parse", "HEAD")

		require.NoError(t, err)
		assert.Equal(t, hash+"\n", string(out))
	})

	t.Run("reports exit code and stderr", func(t *testing.T) {
		_, err := runner.Run(ctx, t.TempDir(), "log")

		var subErr *custom_errors.SubprocessError
		require.True(t, errors.As(err, &subErr))
		assert.NotZero(t, subErr.ExitCode)
		assert.NotEmpty(t, subErr.Stderr)
		assert.Equal(t, []string{"log"}, subErr.Args)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := runner.Run(cctx, t.TempDir(), "--version")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("log of a real repository parses", func(t *testing.T) {
		repoPath, repo := initRepo(t, "https://github.com/kospex/kospex.git")
		commitFile(t, repoPath, repo, "main.go", "package main\n")
		commitFile(t, repoPath, repo, "Dockerfile", "FROM scratch\n")

		commits, err := NewClient(runner, testLogger()).Log(ctx, repoPath, Window{})

		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, "Dockerfile", commits[0].Files[0].FilePath)
		assert.Equal(t, 1, commits[0].ParentCount)
		assert.Equal(t, 0, commits[1].ParentCount)
	})

	t.Run("non-ASCII paths are stored unquoted", func(t *testing.T) {
		repoPath, repo := initRepo(t, "https://github.com/kospex/kospex.git")
		commitFile(t, repoPath, repo, "café.go", "package main\n")

		commits, err := NewClient(runner, testLogger()).Log(ctx, repoPath, Window{})

		require.NoError(t, err)
		require.Len(t, commits, 1)
		require.Len(t, commits[0].Files, 1)
		assert.Equal(t, "café.go", commits[0].Files[0].FilePath)
	})

	t.Run("merge and empty commits", func(t *testing.T) {
		repoPath, repo := initRepo(t, "https://github.com/kospex/kospex.git")
		commitFile(t, repoPath, repo, "main.go", "package main\n")
		git := func(args ...string) {
			t.Helper()
			identity := []string{"-c", "user.name=Test Author", "-c", "user.email=test@example.com"}
			_, err := runner.Run(ctx, repoPath, append(identity, args...)...)
			require.NoError(t, err)
		}
		git("checkout", "-q", "-b", "feature")
		require.NoError(t, os.WriteFile(filepath.Join(repoPath, "feature.go"), []byte("package main\n"), 0644))
		git("add", "feature.go")
		git("commit", "-q", "-m", "add feature")
		git("checkout", "-q", "-")
		git("merge", "-q", "--no-ff", "-m", "merge feature", "feature")
		git("commit", "-q", "--allow-empty", "-m", "empty")

		commits, err := NewClient(runner, testLogger()).Log(ctx, repoPath, Window{})

		require.NoError(t, err)
		require.Len(t, commits, 4)
		empty, merge := commits[0], commits[1]
		assert.Equal(t, 1, empty.ParentCount)
		assert.Empty(t, empty.Files)
		assert.Equal(t, 2, merge.ParentCount)
		assert.Empty(t, merge.Files)
	})
}
