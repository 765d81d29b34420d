package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/compose"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// PostSubmitter is the slice of linkedinapi.Client the publisher needs.
type PostSubmitter interface {
	SubmitPost(ctx context.Context, accessToken, memberID, text string) (string, error)
}

// PublishResult describes a completed publish.
type PublishResult struct {
	CommitIDs []string `json:"commit_ids"`
	PostID    string   `json:"post_id,omitempty"`
	Text      string   `json:"text"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Push carries the fields of a webhook push event the publisher cares
// about, already extracted by the handler so the service stays free of
// webhook wire types.
type Push struct {
	OwnerID  int64  // repository owner's GitHub id — resolves the user
	RepoName string // short name, e.g. "repo"
	RepoURL  string
	CommitID string // head commit SHA
	Message  string
	Author   string
}

// PublishService submits composed posts through the linked credential and
// records publish status. Manual posts, digests, and webhook-triggered
// posts all run through here and share one posted ledger, so any of them
// deduplicates against the others.
type PublishService struct {
	users   repository.UserRepository
	ledger  repository.PostLedger
	commits *CommitService
	poster  PostSubmitter
	logger  *slog.Logger

	// Per-user locks serialize the check-submit-mark sequence so two
	// concurrent publishes of the same commit cannot both pass the
	// already-posted check. Locks are per user: independent users' requests
	// stay independently schedulable.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewPublishService creates a PublishService with all required dependencies.
func NewPublishService(
	users repository.UserRepository,
	ledger repository.PostLedger,
	commits *CommitService,
	poster PostSubmitter,
	logger *slog.Logger,
) *PublishService {
	return &PublishService{
		users:   users,
		ledger:  ledger,
		commits: commits,
		poster:  poster,
		logger:  logger,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockUser takes the per-user publish lock and returns the unlock func.
func (s *PublishService) lockUser(githubID int64) func() {
	s.mu.Lock()
	lock, ok := s.locks[githubID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[githubID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// PublishCommit publishes one commit as a LinkedIn post.
//
// Preconditions: the user exists, is linked, and the commit is not already
// posted — the last one fails with apperror.ErrAlreadyPosted rather than
// silently succeeding, so the caller decides whether that counts as success
// (the HTTP layer treats it as one, which makes manual retry safe).
//
// The commit is only marked posted after LinkedIn accepts the submission.
// A rejected credential (apperror.ErrCredential) or transient failure
// (apperror.ErrTransientPublish) leaves it unposted, so a retry after
// re-linking or a manual retry later will succeed.
func (s *PublishService) PublishCommit(ctx context.Context, githubID int64, commitID, repoFullName string) (*PublishResult, error) {
	defer s.lockUser(githubID)()

	user, err := s.publishableUser(ctx, githubID)
	if err != nil {
		return nil, err
	}

	if err := s.requireUnposted(ctx, githubID, commitID); err != nil {
		return nil, err
	}

	commit, err := s.findCommit(ctx, githubID, commitID, repoFullName)
	if err != nil {
		return nil, err
	}

	post := compose.Single(commit, commit.Repo)
	if post.Truncated {
		s.logger.Warn("post text truncated to fit platform limit",
			slog.Int64("githubID", githubID),
			slog.String("commitID", commitID),
		)
	}

	postID, err := s.poster.SubmitPost(ctx, user.LinkedInToken, user.LinkedInID, post.Text)
	if err != nil {
		return nil, fmt.Errorf("service/publish: commit %s for user %d: %w", commitID, githubID, err)
	}

	if err := s.ledger.MarkPosted(ctx, githubID, commitID); err != nil {
		// The post is live but the ledger write failed; surfacing the error
		// would invite a retry and a duplicate post. Log loudly instead.
		s.logger.Error("post submitted but ledger update failed",
			slog.Int64("githubID", githubID),
			slog.String("commitID", commitID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("commit published",
		slog.Int64("githubID", githubID),
		slog.String("commitID", commitID),
		slog.String("postID", postID),
	)

	return &PublishResult{
		CommitIDs: []string{commitID},
		PostID:    postID,
		Text:      post.Text,
		Truncated: post.Truncated,
	}, nil
}

// PublishDigest publishes a batch of commits as one post.
//
// The digest is a single network call, so partial success is impossible:
// on success every included commit id is marked posted in one transaction,
// on failure none are. Any id that is already posted fails the whole digest
// with apperror.ErrAlreadyPosted before anything is submitted.
func (s *PublishService) PublishDigest(ctx context.Context, githubID int64, commitIDs []string, repoFullName string) (*PublishResult, error) {
	if err := validateDigestIDs(commitIDs); err != nil {
		return nil, err
	}

	defer s.lockUser(githubID)()

	user, err := s.publishableUser(ctx, githubID)
	if err != nil {
		return nil, err
	}

	for _, commitID := range commitIDs {
		if err := s.requireUnposted(ctx, githubID, commitID); err != nil {
			return nil, err
		}
	}

	selected, err := s.selectDigestCommits(ctx, githubID, commitIDs, repoFullName)
	if err != nil {
		return nil, err
	}

	post := compose.Digest(selected)
	if post.Truncated {
		s.logger.Warn("digest text truncated to fit platform limit",
			slog.Int64("githubID", githubID),
			slog.Int("commits", len(selected)),
		)
	}

	postID, err := s.poster.SubmitPost(ctx, user.LinkedInToken, user.LinkedInID, post.Text)
	if err != nil {
		return nil, fmt.Errorf("service/publish: digest for user %d: %w", githubID, err)
	}

	if err := s.ledger.MarkAllPosted(ctx, githubID, commitIDs); err != nil {
		s.logger.Error("digest submitted but ledger update failed",
			slog.Int64("githubID", githubID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("digest published",
		slog.Int64("githubID", githubID),
		slog.Int("commits", len(commitIDs)),
		slog.String("postID", postID),
	)

	return &PublishResult{
		CommitIDs: commitIDs,
		PostID:    postID,
		Text:      post.Text,
		Truncated: post.Truncated,
	}, nil
}

// PublishPush publishes the head commit of a webhook push event.
//
// It consults and updates the same posted ledger as the manual paths: a
// commit posted manually is skipped when its push webhook arrives, and a
// webhook-posted commit shows up as posted in later listings.
func (s *PublishService) PublishPush(ctx context.Context, push Push) (*PublishResult, error) {
	if push.OwnerID == 0 || push.CommitID == "" {
		return nil, apperror.ValidationFailed("payload", "push event is missing the repository owner or head commit")
	}

	defer s.lockUser(push.OwnerID)()

	user, err := s.publishableUser(ctx, push.OwnerID)
	if err != nil {
		return nil, err
	}

	if err := s.requireUnposted(ctx, push.OwnerID, push.CommitID); err != nil {
		return nil, err
	}

	post := compose.FromPush(push.Author, push.RepoName, push.Message, push.RepoURL)
	if post.Truncated {
		s.logger.Warn("push post text truncated to fit platform limit",
			slog.Int64("githubID", push.OwnerID),
			slog.String("commitID", push.CommitID),
		)
	}

	postID, err := s.poster.SubmitPost(ctx, user.LinkedInToken, user.LinkedInID, post.Text)
	if err != nil {
		return nil, fmt.Errorf("service/publish: push commit %s for user %d: %w", push.CommitID, push.OwnerID, err)
	}

	if err := s.ledger.MarkPosted(ctx, push.OwnerID, push.CommitID); err != nil {
		s.logger.Error("push post submitted but ledger update failed",
			slog.Int64("githubID", push.OwnerID),
			slog.String("commitID", push.CommitID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("push commit published",
		slog.Int64("githubID", push.OwnerID),
		slog.String("commitID", push.CommitID),
		slog.String("postID", postID),
	)

	return &PublishResult{
		CommitIDs: []string{push.CommitID},
		PostID:    postID,
		Text:      post.Text,
		Truncated: post.Truncated,
	}, nil
}

// PreviewCommit composes the post for one commit without submitting
// anything or touching the posted ledger. The text is exactly what
// PublishCommit would send, so the user can read before they post.
//
// No linked credential is required: previewing is how a user decides
// whether linking is worth it in the first place.
func (s *PublishService) PreviewCommit(ctx context.Context, githubID int64, commitID, repoFullName string) (*PublishResult, error) {
	commit, err := s.findCommit(ctx, githubID, commitID, repoFullName)
	if err != nil {
		return nil, err
	}

	post := compose.Single(commit, commit.Repo)
	return &PublishResult{
		CommitIDs: []string{commitID},
		Text:      post.Text,
		Truncated: post.Truncated,
	}, nil
}

// PreviewDigest composes a digest without submitting or marking anything.
// Same id validation as PublishDigest, but already-posted ids are allowed —
// a preview of history is harmless.
func (s *PublishService) PreviewDigest(ctx context.Context, githubID int64, commitIDs []string, repoFullName string) (*PublishResult, error) {
	if err := validateDigestIDs(commitIDs); err != nil {
		return nil, err
	}

	selected, err := s.selectDigestCommits(ctx, githubID, commitIDs, repoFullName)
	if err != nil {
		return nil, err
	}

	post := compose.Digest(selected)
	return &PublishResult{
		CommitIDs: commitIDs,
		Text:      post.Text,
		Truncated: post.Truncated,
	}, nil
}

// validateDigestIDs rejects empty and duplicated id lists. A duplicate
// would render the same commit twice in the digest text and mark it twice
// in the ledger result, so it is a caller error, not something to silently
// collapse.
func validateDigestIDs(commitIDs []string) error {
	if len(commitIDs) == 0 {
		return apperror.ValidationFailed("commit_ids", "digest requires at least one commit id")
	}
	seen := make(map[string]bool, len(commitIDs))
	for _, commitID := range commitIDs {
		if seen[commitID] {
			return apperror.ValidationFailed("commit_ids", fmt.Sprintf("commit %s appears more than once", commitID))
		}
		seen[commitID] = true
	}
	return nil
}

// selectDigestCommits resolves commitIDs against the user's recent page,
// keeping the caller's ordering (which the composer preserves). Any id not
// on the page fails the whole selection.
func (s *PublishService) selectDigestCommits(ctx context.Context, githubID int64, commitIDs []string, repoFullName string) ([]model.Commit, error) {
	page, err := s.commits.List(ctx, githubID, repoFullName)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Commit, len(page))
	for _, c := range page {
		byID[c.ID] = c
	}

	selected := make([]model.Commit, 0, len(commitIDs))
	for _, commitID := range commitIDs {
		commit, ok := byID[commitID]
		if !ok {
			return nil, fmt.Errorf("service/publish: digest for user %d: %w",
				githubID, apperror.NotFound("commit", commitID))
		}
		selected = append(selected, commit)
	}
	return selected, nil
}

// publishableUser loads the user and checks the linked precondition.
func (s *PublishService) publishableUser(ctx context.Context, githubID int64) (*model.User, error) {
	user, err := s.users.GetByGitHubID(ctx, githubID)
	if err != nil {
		return nil, fmt.Errorf("service/publish: fetching user %d: %w", githubID, err)
	}
	if !user.Linked() {
		return nil, fmt.Errorf("service/publish: user %d: %w", githubID, apperror.NotLinked())
	}
	return user, nil
}

// requireUnposted is the duplicate-post guard.
func (s *PublishService) requireUnposted(ctx context.Context, githubID int64, commitID string) error {
	posted, err := s.ledger.IsPosted(ctx, githubID, commitID)
	if err != nil {
		return fmt.Errorf("service/publish: checking posted status of %s for user %d: %w", commitID, githubID, err)
	}
	if posted {
		return fmt.Errorf("service/publish: user %d: %w", githubID, apperror.AlreadyPosted(commitID))
	}
	return nil
}

// findCommit locates one commit in the user's recent page. The message and
// repo come from the fetch, not from the client request — the composed text
// always reflects what GitHub has.
func (s *PublishService) findCommit(ctx context.Context, githubID int64, commitID, repoFullName string) (model.Commit, error) {
	page, err := s.commits.List(ctx, githubID, repoFullName)
	if err != nil {
		return model.Commit{}, err
	}

	for _, c := range page {
		if c.ID == commitID {
			return c, nil
		}
	}

	return model.Commit{}, fmt.Errorf("service/publish: user %d: %w",
		githubID, apperror.NotFound("commit", commitID))
}
