// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage is the only implementation; tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/commitcast/internal/model"
)

// UserRepository persists users and their platform credentials.
//
// All mutations are durable before returning. SetLinkedIn and ClearLinkedIn
// update the credential pair atomically — callers never observe a user with
// only one of the two LinkedIn fields set.
type UserRepository interface {
	// Upsert inserts a user on first GitHub login and refreshes the login
	// name and GitHub token on later logins. It never touches the LinkedIn
	// fields: a re-login must not drop an existing link.
	Upsert(ctx context.Context, user *model.User) error

	// GetByGitHubID returns apperror.ErrNotFound if the id has never
	// completed a GitHub OAuth flow.
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)

	// SetLinkedIn stores the credential pair and returns the updated user.
	SetLinkedIn(ctx context.Context, githubID int64, token, memberID string) (*model.User, error)

	// ClearLinkedIn nulls the credential pair. Idempotent: clearing an
	// already-unlinked user succeeds silently.
	ClearLinkedIn(ctx context.Context, githubID int64) (*model.User, error)
}

// PostLedger durably remembers which commits have been published for a user.
// Commits themselves are fetched live from GitHub; only this posted/unposted
// fact persists, keyed by (github user id, commit SHA).
type PostLedger interface {
	// MarkPosted records one commit as posted. Idempotent.
	MarkPosted(ctx context.Context, githubID int64, commitID string) error

	// MarkAllPosted records a batch inside a single transaction: either the
	// whole digest is remembered as posted, or none of it is.
	MarkAllPosted(ctx context.Context, githubID int64, commitIDs []string) error

	// IsPosted reports whether a commit has been posted.
	IsPosted(ctx context.Context, githubID int64, commitID string) (bool, error)

	// PostedSet returns the subset of commitIDs already posted, for
	// annotating a fetched commit list in one query.
	PostedSet(ctx context.Context, githubID int64, commitIDs []string) (map[string]bool, error)
}
