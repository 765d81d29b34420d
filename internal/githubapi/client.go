// Package githubapi implements commit fetching using the go-github library.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
)

// Client wraps go-github for the read paths the relay needs: listing a
// user's recent commits and discovering their most recently pushed repo.
//
// Each client is bound to one user's stored OAuth token — the service layer
// builds a client per request from the credential in the user row.
type Client struct {
	gh *gh.Client
}

// New creates a GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with the user's OAuth token)
//
// Commit listings are re-fetched on every request; conditional requests make
// the unchanged case nearly free against the rate limit.
func New(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewWithBaseURL creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an
// httptest server in place of api.github.com.
func NewWithBaseURL(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("githubapi: parsing base URL: %w", err)
	}
	// go-github requires the base URL to end in a slash.
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ListRecentCommits retrieves the newest commits of a repository, bounded to
// limit, in the order GitHub returned them (newest first). The publish
// status on the returned commits is always "unposted" — annotation against
// the posted ledger is the service layer's job.
func (c *Client) ListRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.Commit, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	ghCommits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, mapError(fmt.Sprintf("listing commits for %s", repoFullName), err)
	}

	commits := make([]model.Commit, 0, len(ghCommits))
	for _, rc := range ghCommits {
		commits = append(commits, mapCommit(rc, repoFullName))
	}

	return commits, nil
}

// MostRecentRepo returns the full name of the authenticated user's most
// recently pushed repository. Used as the default when a commit listing or
// publish request names no repository.
func (c *Client) MostRecentRepo(ctx context.Context) (string, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "pushed",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	repos, _, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return "", mapError("listing repositories", err)
	}
	if len(repos) == 0 {
		return "", apperror.NotFound("repository", "most recently pushed")
	}

	return repos[0].GetFullName(), nil
}

// mapCommit converts a go-github commit into the domain model.
func mapCommit(rc *gh.RepositoryCommit, repoFullName string) model.Commit {
	commit := model.Commit{
		ID:      rc.GetSHA(),
		Repo:    repoFullName,
		Message: rc.GetCommit().GetMessage(),
		URL:     rc.GetHTMLURL(),
		Status:  model.StatusUnposted,
	}
	if author := rc.GetCommit().GetAuthor(); author != nil {
		commit.Author = author.GetName()
		commit.AuthoredAt = author.GetDate().Time
	}
	return commit
}

// mapError converts go-github failures into the application taxonomy at the
// client boundary: a rejected credential means "reconnect", anything else on
// this read path means "try again later". Raw upstream bodies stay out of
// the returned error — callers log err, clients of the API never see it.
func mapError(op string, err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("githubapi: %s: %v: %w", op, err, apperror.Credential("GitHub"))
		}
	}
	return fmt.Errorf("githubapi: %s: %v: %w", op, err, apperror.Upstream("GitHub is unavailable, please try again later"))
}

// splitRepo splits "owner/name" into its parts.
func splitRepo(repoFullName string) (owner, repo string, err error) {
	parts := strings.SplitN(repoFullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperror.ValidationFailed("repo", fmt.Sprintf("invalid repository name %q, expected owner/name", repoFullName))
	}
	return parts[0], parts[1], nil
}
