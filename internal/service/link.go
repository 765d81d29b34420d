// Package service contains the business logic layer of the application.
//
// The layering follows the usual three-layer shape:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services receive interfaces (repositories, platform clients), not concrete
// types, so tests swap in fakes with plain Go values and no network.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// GitHubAuthProvider is the slice of auth.GitHubProvider the link service
// needs. An interface so tests can exchange codes without GitHub.
type GitHubAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubProfile, error)
}

// LinkedInAuthProvider mirrors GitHubAuthProvider for the publishing side.
type LinkedInAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.LinkedInIdentity, error)
}

// LinkService drives the two OAuth flows and derives link status.
//
// The flows are deliberately decoupled and ordered: the GitHub identity is
// the primary key, so it must exist before a LinkedIn credential can be
// attached — otherwise a LinkedIn token could end up with no owning user.
// The LinkedIn identity is optional and revocable at any time.
type LinkService struct {
	users    repository.UserRepository
	github   GitHubAuthProvider
	linkedin LinkedInAuthProvider
	sessions *auth.SessionService
	logger   *slog.Logger
}

// NewLinkService creates a LinkService with all required dependencies.
func NewLinkService(
	users repository.UserRepository,
	github GitHubAuthProvider,
	linkedin LinkedInAuthProvider,
	sessions *auth.SessionService,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		users:    users,
		github:   github,
		linkedin: linkedin,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginResult bundles the user record and the issued session token so the
// handler can set the cookie and redirect in one step.
type LoginResult struct {
	User         *model.User
	SessionToken string
}

// BeginGitHubAuth returns the GitHub authorization URL for the given CSRF
// state. No server-side state beyond the handler's state cookie.
func (s *LinkService) BeginGitHubAuth(state string) string {
	return s.github.AuthURL(state)
}

// CompleteGitHubAuth finishes the GitHub flow: exchanges the code, upserts
// the user, and issues a session token.
//
// First login inserts the user row; later logins refresh the username and
// GitHub token in case either changed, and leave any LinkedIn link intact.
func (s *LinkService) CompleteGitHubAuth(ctx context.Context, code string) (*LoginResult, error) {
	profile, err := s.github.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("github code exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/link: %v: %w", err, apperror.AuthExchange("GitHub"))
	}

	user := &model.User{
		GitHubID:    profile.ID,
		GitHubLogin: profile.Login,
		GitHubToken: profile.AccessToken,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/link: upserting user (githubID=%d): %w", profile.ID, err)
	}

	token, err := s.sessions.Generate(user.GitHubID)
	if err != nil {
		return nil, fmt.Errorf("service/link: generating session for user %d: %w", user.GitHubID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("githubID", user.GitHubID),
		slog.String("login", user.GitHubLogin),
	)

	return &LoginResult{User: user, SessionToken: token}, nil
}

// BeginLinkedInAuth returns the LinkedIn authorization URL for an existing
// user. Fails with apperror.ErrLinkPrecondition if the id has never
// completed GitHub login — the publishing identity cannot be linked
// standalone.
//
// The OAuth state is a signed short-lived token carrying the user id, so
// the callback can attach the credential without trusting anything the
// client sends.
func (s *LinkService) BeginLinkedInAuth(ctx context.Context, githubID int64) (string, error) {
	if _, err := s.users.GetByGitHubID(ctx, githubID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", fmt.Errorf("service/link: user %d: %w", githubID, apperror.LinkPrecondition())
		}
		return "", fmt.Errorf("service/link: looking up user %d: %w", githubID, err)
	}

	state, err := s.sessions.GenerateLinkState(githubID)
	if err != nil {
		return "", fmt.Errorf("service/link: generating link state for user %d: %w", githubID, err)
	}

	return s.linkedin.AuthURL(state), nil
}

// CompleteLinkedInAuth verifies the state token, exchanges the code, and
// stores the credential pair against the user the state names.
func (s *LinkService) CompleteLinkedInAuth(ctx context.Context, code, state string) (*model.User, error) {
	githubID, err := s.sessions.ValidateLinkState(state)
	if err != nil {
		s.logger.Warn("linkedin callback with invalid state", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/link: %v: %w",
			err, apperror.ValidationFailed("state", "invalid or expired authorization state"))
	}

	identity, err := s.linkedin.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("linkedin code exchange failed",
			slog.Int64("githubID", githubID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/link: %v: %w", err, apperror.AuthExchange("LinkedIn"))
	}

	user, err := s.users.SetLinkedIn(ctx, githubID, identity.AccessToken, identity.MemberID)
	if err != nil {
		return nil, fmt.Errorf("service/link: storing linkedin credential for user %d: %w", githubID, err)
	}

	s.logger.Info("linkedin account linked",
		slog.Int64("githubID", githubID),
		slog.String("memberID", identity.MemberID),
	)

	return user, nil
}

// UnlinkLinkedIn clears the stored LinkedIn credential pair. Idempotent:
// unlinking an already-unlinked user succeeds silently.
func (s *LinkService) UnlinkLinkedIn(ctx context.Context, githubID int64) error {
	if _, err := s.users.ClearLinkedIn(ctx, githubID); err != nil {
		return fmt.Errorf("service/link: unlinking user %d: %w", githubID, err)
	}

	s.logger.Info("linkedin account unlinked", slog.Int64("githubID", githubID))
	return nil
}

// Status derives the user-visible link state. Pure projection over the
// repository; mirrors its NotFound for ids that never linked GitHub.
func (s *LinkService) Status(ctx context.Context, githubID int64) (*model.LinkStatus, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("service/link: fetching user %d: %w", githubID, err)
	}

	return &model.LinkStatus{
		GitHubID:       user.GitHubID,
		GitHubUsername: user.GitHubLogin,
		Linked:         user.Linked(),
	}, nil
}
