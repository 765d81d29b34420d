package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// CommitPageSize bounds every commit listing. Commits older than the page
// are simply not offered for publishing.
const CommitPageSize = 30

// CommitLister is the slice of githubapi.Client the service needs.
type CommitLister interface {
	ListRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.Commit, error)
	MostRecentRepo(ctx context.Context) (string, error)
}

// GitHubClientFactory builds a CommitLister bound to one user's stored
// OAuth token. The GitHub client carries per-token state (auth transport,
// response cache), so there is one client per credential, built on demand.
type GitHubClientFactory func(token string) CommitLister

// CommitService fetches a user's recent commits and annotates each with its
// publish status from the posted ledger.
type CommitService struct {
	users   repository.UserRepository
	ledger  repository.PostLedger
	clients GitHubClientFactory
	logger  *slog.Logger
}

// NewCommitService creates a CommitService with all required dependencies.
func NewCommitService(
	users repository.UserRepository,
	ledger repository.PostLedger,
	clients GitHubClientFactory,
	logger *slog.Logger,
) *CommitService {
	return &CommitService{
		users:   users,
		ledger:  ledger,
		clients: clients,
		logger:  logger,
	}
}

// List returns the newest commits for the user, newest first, bounded to
// CommitPageSize, each stamped posted or unposted.
//
// repoFullName may be empty, in which case the user's most recently pushed
// repository is used. Order is exactly what GitHub returned — annotation
// never reorders.
//
// Failures surface as apperror.ErrUpstream (GitHub errored) or
// apperror.ErrCredential (stored token rejected; the caller should prompt
// re-linking rather than retry). No internal retry: this is a read path and
// callers may simply re-request.
func (s *CommitService) List(ctx context.Context, githubID int64, repoFullName string) ([]model.Commit, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("service/commits: fetching user %d: %w", githubID, err)
	}

	client := s.clients(user.GitHubToken)

	if repoFullName == "" {
		repoFullName, err = client.MostRecentRepo(ctx)
		if err != nil {
			return nil, fmt.Errorf("service/commits: resolving default repo for user %d: %w", githubID, err)
		}
	}

	commits, err := client.ListRecentCommits(ctx, repoFullName, CommitPageSize)
	if err != nil {
		return nil, fmt.Errorf("service/commits: listing commits of %s for user %d: %w", repoFullName, githubID, err)
	}

	ids := make([]string, len(commits))
	for i, c := range commits {
		ids[i] = c.ID
	}

	posted, err := s.ledger.PostedSet(ctx, githubID, ids)
	if err != nil {
		return nil, fmt.Errorf("service/commits: loading posted set for user %d: %w", githubID, err)
	}

	for i := range commits {
		if posted[commits[i].ID] {
			commits[i].Status = model.StatusPosted
		}
	}

	return commits, nil
}
