// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a httptest server and a github client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	// No token: we are not authenticating to the real GitHub.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient("", logger)

	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	testClient := github.NewClient(server.Client())
	testClient.BaseURL = baseURL
	client.gh = testClient

	return client, server
}

const repoJSON = `{"id": 1, "name": "repo", "owner": {"login": "test"}, "clone_url": "https://github.com/test/repo.git", "ssh_url": "git@github.com:test/repo.git"}`

func TestClient_GetRepository_Retry(t *testing.T) {
	t.Run("succeeds on first try", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, "/repos/test/repo", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, repoJSON)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		repo, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
		assert.Equal(t, "repo", repo.Name)
		assert.Equal(t, "test", repo.Owner)
		assert.Equal(t, "https://github.com/test/repo.git", repo.CloneURL)
		assert.Equal(t, "git@github.com:test/repo.git", repo.SSHURL)
	})

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.WriteHeader(http.StatusServiceUnavailable) // Fail first time
				return
			}
			w.WriteHeader(http.StatusOK) // Succeed second time
			fmt.Fprintln(w, repoJSON)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("handles rate limit error", func(t *testing.T) {
		var requestCount int32
		start := time.Now()
		// The reset header has second precision, so it lands between one and two seconds out.
		resetTime := time.Unix(start.Add(2*time.Second).Unix(), 0)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.Header().Set("X-RateLimit-Limit", "60")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime.Unix()))
				w.WriteHeader(http.StatusForbidden) // RateLimitError is a 403
				fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, repoJSON)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "client should wait for rate limit reset")
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var ghErr *github.ErrorResponse
		assert.ErrorAs(t, err, &ghErr)
		assert.Equal(t, http.StatusInternalServerError, ghErr.Response.StatusCode)
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&requestCount))
	})

	t.Run("does not retry a client error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "missing")

		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})

	t.Run("stops waiting when the context is cancelled", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := client.GetRepository(ctx, "test", "repo")

		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_ListRepositories(t *testing.T) {
	t.Run("follows organization pagination", func(t *testing.T) {
		var serverURL string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orgs/acme/repos", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprintln(w, `[{"name": "three", "owner": {"login": "acme"}, "clone_url": "https://github.com/acme/three.git", "archived": true}]`)
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<%s/orgs/acme/repos?page=2>; rel="next"`, serverURL))
			fmt.Fprintln(w, `[
				{"name": "one", "owner": {"login": "acme"}, "clone_url": "https://github.com/acme/one.git"},
				{"name": "two", "owner": {"login": "acme"}, "clone_url": "https://github.com/acme/two.git", "fork": true}
			]`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()
		serverURL = server.URL

		repos, err := client.ListRepositories(context.Background(), "acme")

		require.NoError(t, err)
		require.Len(t, repos, 3)
		assert.Equal(t, "one", repos[0].Name)
		assert.True(t, repos[1].Fork)
		assert.True(t, repos[2].Archived)
		assert.Equal(t, "https://github.com/acme/three.git", repos[2].CloneURL)
	})

	t.Run("falls back to user repositories", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/orgs/octocat/repos":
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintln(w, `{"message": "Not Found"}`)
			case "/users/octocat/repos":
				assert.Equal(t, "owner", r.URL.Query().Get("type"))
				fmt.Fprintln(w, `[{"name": "hello-world", "owner": {"login": "octocat"}, "clone_url": "https://github.com/octocat/hello-world.git"}]`)
			default:
				w.WriteHeader(http.StatusTeapot)
			}
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		repos, err := client.ListRepositories(context.Background(), "octocat")

		require.NoError(t, err)
		require.Len(t, repos, 1)
		assert.Equal(t, "octocat", repos[0].Owner)
	})
}
