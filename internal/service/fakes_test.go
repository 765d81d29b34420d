package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
)

// Hand-written in-memory fakes shared by the service tests. Fakes rather
// than a mock framework: you can read exactly what each one does, and the
// tests stay free of expectation DSLs.

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users map[int64]*model.User
	// set to a non-nil error to simulate a database failure
	upsertErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.users[user.GitHubID]; ok {
		// UPDATE path: refresh GitHub fields, keep the LinkedIn link.
		existing.GitHubLogin = user.GitHubLogin
		existing.GitHubToken = user.GitHubToken
		*user = *existing
		return nil
	}
	copied := *user
	f.users[user.GitHubID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[githubID]
	if !ok {
		return nil, apperror.NotFound("user", "unknown")
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) SetLinkedIn(ctx context.Context, githubID int64, token, memberID string) (*model.User, error) {
	u, ok := f.users[githubID]
	if !ok {
		return nil, apperror.NotFound("user", "unknown")
	}
	u.LinkedInToken = token
	u.LinkedInID = memberID
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) ClearLinkedIn(ctx context.Context, githubID int64) (*model.User, error) {
	return f.SetLinkedIn(ctx, githubID, "", "")
}

// addLinkedUser seeds a user with a LinkedIn link already in place.
func (f *fakeUserRepo) addLinkedUser(githubID int64, login string) {
	f.users[githubID] = &model.User{
		GitHubID:      githubID,
		GitHubLogin:   login,
		GitHubToken:   "gh-token-" + login,
		LinkedInID:    "li-member-" + login,
		LinkedInToken: "li-token-" + login,
	}
}

// addUnlinkedUser seeds a user who has only completed GitHub login.
func (f *fakeUserRepo) addUnlinkedUser(githubID int64, login string) {
	f.users[githubID] = &model.User{
		GitHubID:    githubID,
		GitHubLogin: login,
		GitHubToken: "gh-token-" + login,
	}
}

// fakeLedger is an in-memory repository.PostLedger.
type fakeLedger struct {
	posted map[string]bool // key: "<githubID>/<commitID>"
	// set to a non-nil error to make every call fail
	err error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{posted: make(map[string]bool)}
}

func ledgerKey(githubID int64, commitID string) string {
	return fmt.Sprintf("%d/%s", githubID, commitID)
}

func (f *fakeLedger) MarkPosted(ctx context.Context, githubID int64, commitID string) error {
	if f.err != nil {
		return f.err
	}
	f.posted[ledgerKey(githubID, commitID)] = true
	return nil
}

func (f *fakeLedger) MarkAllPosted(ctx context.Context, githubID int64, commitIDs []string) error {
	if f.err != nil {
		return f.err
	}
	for _, id := range commitIDs {
		f.posted[ledgerKey(githubID, id)] = true
	}
	return nil
}

func (f *fakeLedger) IsPosted(ctx context.Context, githubID int64, commitID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.posted[ledgerKey(githubID, commitID)], nil
}

func (f *fakeLedger) PostedSet(ctx context.Context, githubID int64, commitIDs []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	set := make(map[string]bool)
	for _, id := range commitIDs {
		if f.posted[ledgerKey(githubID, id)] {
			set[id] = true
		}
	}
	return set, nil
}

// fakeLister is a canned CommitLister.
type fakeLister struct {
	commits    []model.Commit
	recentRepo string
	listErr    error
	repoErr    error
}

func (f *fakeLister) ListRecentCommits(ctx context.Context, repoFullName string, limit int) ([]model.Commit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Commit, len(f.commits))
	copy(out, f.commits)
	// The real githubapi client stamps every commit unposted at
	// construction; the service relies on that, so the fake must too.
	for i := range out {
		if out[i].Status == "" {
			out[i].Status = model.StatusUnposted
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLister) MostRecentRepo(ctx context.Context) (string, error) {
	if f.repoErr != nil {
		return "", f.repoErr
	}
	return f.recentRepo, nil
}

// fakeSubmitter counts submissions — the duplicate-post tests hinge on the
// count never exceeding one per commit.
type fakeSubmitter struct {
	calls    int
	lastText string
	lastURN  string
	err      error
}

func (f *fakeSubmitter) SubmitPost(ctx context.Context, accessToken, memberID, text string) (string, error) {
	f.calls++
	f.lastText = text
	f.lastURN = memberID
	if f.err != nil {
		return "", f.err
	}
	return "urn:li:share:42", nil
}

// testLogger discards everything below Error so test output stays quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestCommitService wires a CommitService whose factory always returns
// the given lister.
func newTestCommitService(t *testing.T, users *fakeUserRepo, ledger *fakeLedger, lister *fakeLister) *CommitService {
	t.Helper()
	factory := func(token string) CommitLister { return lister }
	return NewCommitService(users, ledger, factory, testLogger())
}
