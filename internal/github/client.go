// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	maxRetries   = 3
	retryBackoff = 500 * time.Millisecond
	perPage      = 100
)

// Repository is a remote repository discovered under a GitHub owner.
type Repository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	CloneURL string `json:"clone_url"`
	SSHURL   string `json:"ssh_url"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
}

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// An empty token gives an unauthenticated client.
func NewClient(token string, logger *slog.Logger) *Client {
	httpClient := http.DefaultClient
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &Client{
		gh:     github.NewClient(httpClient),
		logger: logger,
	}
}

// GetRepository fetches a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	var repo *github.Repository
	err := c.withRetry(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		repo, resp, err = c.gh.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	r := toRepository(repo)
	return &r, nil
}

// ListRepositories lists every repository of an organization, or of a user when owner is not an organization.
// It handles API pagination transparently.
func (c *Client) ListRepositories(ctx context.Context, owner string) ([]Repository, error) {
	repos, err := c.listOrgRepositories(ctx, owner)
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		c.logger.Debug("Owner is not an organization, listing user repositories", "owner", owner)
		return c.listUserRepositories(ctx, owner)
	}
	return repos, err
}

func (c *Client) listOrgRepositories(ctx context.Context, owner string) ([]Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var all []Repository
	for {
		c.logger.Debug("Fetching organization repositories page", "owner", owner, "page", opts.Page)

		var page []*github.Repository
		var resp *github.Response
		err := c.withRetry(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = c.gh.Repositories.ListByOrg(ctx, owner, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			all = append(all, toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) listUserRepositories(ctx context.Context, owner string) ([]Repository, error) {
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var all []Repository
	for {
		c.logger.Debug("Fetching user repositories page", "owner", owner, "page", opts.Page)

		var page []*github.Repository
		var resp *github.Response
		err := c.withRetry(ctx, func() (*github.Response, error) {
			var err error
			page, resp, err = c.gh.Repositories.ListByUser(ctx, owner, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			all = append(all, toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// withRetry runs call up to maxRetries times. Server errors are retried with a linear backoff
// and a rate limit waits until the limit resets. Any other error is returned immediately.
func (c *Client) withRetry(ctx context.Context, call func() (*github.Response, error)) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var resp *github.Response
		resp, err = call()
		if err == nil {
			return nil
		}

		var wait time.Duration
		var rateErr *github.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			wait = time.Until(rateErr.Rate.Reset.Time)
			c.logger.Warn("GitHub rate limit hit, waiting for reset", "wait", wait.String(), "attempt", attempt)
		case resp != nil && resp.StatusCode >= http.StatusInternalServerError:
			wait = time.Duration(attempt) * retryBackoff
			c.logger.Warn("GitHub server error, retrying", "status", resp.StatusCode, "attempt", attempt)
		default:
			return err
		}
		if attempt == maxRetries {
			break
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return err
}

// toRepository translates a github.Repository object to a discovered Repository.
func toRepository(r *github.Repository) Repository {
	return Repository{
		Owner:    r.GetOwner().GetLogin(),
		Name:     r.GetName(),
		CloneURL: r.GetCloneURL(),
		SSHURL:   r.GetSSHURL(),
		Archived: r.GetArchived(),
		Fork:     r.GetFork(),
	}
}
