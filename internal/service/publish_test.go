package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
)

// publishFixture wires a PublishService over all the in-memory fakes.
type publishFixture struct {
	users     *fakeUserRepo
	ledger    *fakeLedger
	lister    *fakeLister
	submitter *fakeSubmitter
	svc       *PublishService
}

func newPublishFixture(t *testing.T, commits []model.Commit) *publishFixture {
	t.Helper()

	f := &publishFixture{
		users:     newFakeUserRepo(),
		ledger:    newFakeLedger(),
		lister:    &fakeLister{commits: commits, recentRepo: "alice/repo"},
		submitter: &fakeSubmitter{},
	}
	f.users.addLinkedUser(583231, "alice")

	commitSvc := newTestCommitService(t, f.users, f.ledger, f.lister)
	f.svc = NewPublishService(f.users, f.ledger, commitSvc, f.submitter, testLogger())
	return f
}

// =========================================================================
// SINGLE COMMIT PUBLISH TESTS
// =========================================================================

func TestPublishCommit(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	ctx := context.Background()

	result, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo")
	if err != nil {
		t.Fatalf("PublishCommit() error = %v", err)
	}

	if result.PostID != "urn:li:share:42" {
		t.Errorf("PostID = %q", result.PostID)
	}
	want := "Check out this update from my repository \"alice/repo\":\n\n\"fix bug\""
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}
	if f.submitter.lastURN != "li-member-alice" {
		t.Errorf("submitted member id = %q", f.submitter.lastURN)
	}

	posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-1")
	if !posted {
		t.Error("commit not marked posted after successful publish")
	}
}

func TestPublishCommit_SecondAttemptRejected(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	ctx := context.Background()

	if _, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo"); err != nil {
		t.Fatalf("first PublishCommit() error = %v", err)
	}

	_, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo")
	if !errors.Is(err, apperror.ErrAlreadyPosted) {
		t.Errorf("second publish error = %v, want ErrAlreadyPosted", err)
	}

	// The guard must hold at the submission level too: one post, ever.
	if f.submitter.calls != 1 {
		t.Errorf("submitter called %d times, want 1", f.submitter.calls)
	}
}

func TestPublishCommit_ConcurrentAttemptsSubmitOnce(t *testing.T) {
	// Racing publishes of the same commit must collapse to a single
	// LinkedIn submission; the losers see ErrAlreadyPosted.
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	ctx := context.Background()

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, rejected int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, apperror.ErrAlreadyPosted):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d publishes succeeded, want exactly 1", won)
	}
	if rejected != attempts-1 {
		t.Errorf("%d publishes rejected as duplicates, want %d", rejected, attempts-1)
	}
	if f.submitter.calls != 1 {
		t.Errorf("submitter called %d times, want 1", f.submitter.calls)
	}
}

func TestPublishCommit_NotLinked(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{{ID: "sha-1", Repo: "alice/repo"}})
	f.users.addUnlinkedUser(987654, "bob")

	_, err := f.svc.PublishCommit(context.Background(), 987654, "sha-1", "alice/repo")
	if !errors.Is(err, apperror.ErrLinkPrecondition) {
		t.Errorf("error = %v, want ErrLinkPrecondition", err)
	}
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
}

func TestPublishCommit_UnknownCommit(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{{ID: "sha-1", Repo: "alice/repo"}})

	_, err := f.svc.PublishCommit(context.Background(), 583231, "sha-unknown", "alice/repo")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPublishCommit_TransientFailureLeavesUnposted(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	f.submitter.err = apperror.TransientPublish()
	ctx := context.Background()

	_, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo")
	if !errors.Is(err, apperror.ErrTransientPublish) {
		t.Fatalf("error = %v, want ErrTransientPublish", err)
	}

	// The commit stays unposted, so a retry can succeed.
	posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-1")
	if posted {
		t.Fatal("failed publish must not mark the commit posted")
	}

	f.submitter.err = nil
	if _, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo"); err != nil {
		t.Fatalf("retry after transient failure error = %v", err)
	}
}

func TestPublishCommit_CredentialRejectedLeavesUnposted(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	f.submitter.err = apperror.Credential("LinkedIn")
	ctx := context.Background()

	_, err := f.svc.PublishCommit(ctx, 583231, "sha-1", "alice/repo")
	if !errors.Is(err, apperror.ErrCredential) {
		t.Fatalf("error = %v, want ErrCredential", err)
	}

	posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-1")
	if posted {
		t.Error("rejected publish must not mark the commit posted")
	}
}

func TestPublishCommit_TextComesFromFetchedCommit(t *testing.T) {
	// The composed text reflects what GitHub has, never what the client
	// claims the message is.
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "the real message"},
	})

	result, err := f.svc.PublishCommit(context.Background(), 583231, "sha-1", "alice/repo")
	if err != nil {
		t.Fatalf("PublishCommit() error = %v", err)
	}
	if !strings.Contains(result.Text, "the real message") {
		t.Errorf("Text = %q, want fetched commit message", result.Text)
	}
}

// =========================================================================
// DIGEST TESTS
// =========================================================================

func TestPublishDigest(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
		{ID: "sha-2", Repo: "alice/repo", Message: "two"},
		{ID: "sha-3", Repo: "alice/repo", Message: "three"},
	})
	ctx := context.Background()

	result, err := f.svc.PublishDigest(ctx, 583231, []string{"sha-1", "sha-3"}, "alice/repo")
	if err != nil {
		t.Fatalf("PublishDigest() error = %v", err)
	}

	if f.submitter.calls != 1 {
		t.Errorf("submitter called %d times, want 1 (a digest is one post)", f.submitter.calls)
	}
	if !strings.Contains(result.Text, "2 commits") {
		t.Errorf("Text = %q, want 2-commit digest", result.Text)
	}

	// Included ids are posted; the one left out is not.
	for _, id := range []string{"sha-1", "sha-3"} {
		if posted, _ := f.ledger.IsPosted(ctx, 583231, id); !posted {
			t.Errorf("%s should be marked posted", id)
		}
	}
	if posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-2"); posted {
		t.Error("sha-2 was not in the digest and must stay unposted")
	}
}

func TestPublishDigest_EmptyInput(t *testing.T) {
	f := newPublishFixture(t, nil)

	_, err := f.svc.PublishDigest(context.Background(), 583231, nil, "alice/repo")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestPublishDigest_DuplicateIDsRejected(t *testing.T) {
	// Repeating an id would publish a digest the caller did not write;
	// reject rather than silently dedupe.
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
		{ID: "sha-2", Repo: "alice/repo", Message: "two"},
	})

	_, err := f.svc.PublishDigest(context.Background(), 583231, []string{"sha-1", "sha-2", "sha-1"}, "alice/repo")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
}

func TestPublishDigest_AnyPostedIDFailsWhole(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
		{ID: "sha-2", Repo: "alice/repo", Message: "two"},
	})
	ctx := context.Background()
	f.ledger.MarkPosted(ctx, 583231, "sha-2")

	_, err := f.svc.PublishDigest(ctx, 583231, []string{"sha-1", "sha-2"}, "alice/repo")
	if !errors.Is(err, apperror.ErrAlreadyPosted) {
		t.Errorf("error = %v, want ErrAlreadyPosted", err)
	}

	// Nothing was submitted and sha-1 stays unposted.
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
	if posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-1"); posted {
		t.Error("sha-1 must stay unposted when the digest fails")
	}
}

func TestPublishDigest_SubmitFailureMarksNothing(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
		{ID: "sha-2", Repo: "alice/repo", Message: "two"},
	})
	f.submitter.err = apperror.TransientPublish()
	ctx := context.Background()

	_, err := f.svc.PublishDigest(ctx, 583231, []string{"sha-1", "sha-2"}, "alice/repo")
	if !errors.Is(err, apperror.ErrTransientPublish) {
		t.Fatalf("error = %v, want ErrTransientPublish", err)
	}

	for _, id := range []string{"sha-1", "sha-2"} {
		if posted, _ := f.ledger.IsPosted(ctx, 583231, id); posted {
			t.Errorf("%s must stay unposted after a failed digest", id)
		}
	}
}

func TestPublishDigest_UnknownID(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
	})

	_, err := f.svc.PublishDigest(context.Background(), 583231, []string{"sha-1", "sha-gone"}, "alice/repo")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// PREVIEW TESTS
// =========================================================================

func TestPreviewCommit(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	ctx := context.Background()

	result, err := f.svc.PreviewCommit(ctx, 583231, "sha-1", "alice/repo")
	if err != nil {
		t.Fatalf("PreviewCommit() error = %v", err)
	}

	want := "Check out this update from my repository \"alice/repo\":\n\n\"fix bug\""
	if result.Text != want {
		t.Errorf("Text = %q, want %q", result.Text, want)
	}

	// Dry run: nothing sent, nothing marked.
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
	if posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-1"); posted {
		t.Error("preview must not mark the commit posted")
	}
}

func TestPreviewCommit_NoLinkRequired(t *testing.T) {
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "fix bug"},
	})
	f.users.addUnlinkedUser(987654, "bob")

	if _, err := f.svc.PreviewCommit(context.Background(), 987654, "sha-1", "alice/repo"); err != nil {
		t.Errorf("PreviewCommit() for unlinked user error = %v", err)
	}
}

func TestPreviewDigest_AllowsPostedIDs(t *testing.T) {
	// Previewing history is harmless, unlike republishing it.
	f := newPublishFixture(t, []model.Commit{
		{ID: "sha-1", Repo: "alice/repo", Message: "one"},
		{ID: "sha-2", Repo: "alice/repo", Message: "two"},
	})
	ctx := context.Background()
	f.ledger.MarkPosted(ctx, 583231, "sha-1")

	result, err := f.svc.PreviewDigest(ctx, 583231, []string{"sha-1", "sha-2"}, "alice/repo")
	if err != nil {
		t.Fatalf("PreviewDigest() error = %v", err)
	}
	if !strings.Contains(result.Text, "2 commits") {
		t.Errorf("Text = %q, want 2-commit digest", result.Text)
	}
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
}

// =========================================================================
// WEBHOOK PUSH TESTS
// =========================================================================

func TestPublishPush(t *testing.T) {
	f := newPublishFixture(t, nil)
	ctx := context.Background()

	result, err := f.svc.PublishPush(ctx, Push{
		OwnerID:  583231,
		RepoName: "repo",
		RepoURL:  "https://github.com/alice/repo",
		CommitID: "sha-head",
		Message:  "add feature",
		Author:   "Alice",
	})
	if err != nil {
		t.Fatalf("PublishPush() error = %v", err)
	}

	if !strings.Contains(result.Text, "Alice just pushed to repo!") {
		t.Errorf("Text = %q", result.Text)
	}
	if !strings.Contains(result.Text, "#buildinpublic") {
		t.Errorf("Text = %q, missing hashtags", result.Text)
	}

	posted, _ := f.ledger.IsPosted(ctx, 583231, "sha-head")
	if !posted {
		t.Error("pushed commit not marked posted")
	}
}

func TestPublishPush_SharesLedgerWithManualPosts(t *testing.T) {
	// A commit posted manually is skipped when its webhook arrives.
	f := newPublishFixture(t, nil)
	ctx := context.Background()
	f.ledger.MarkPosted(ctx, 583231, "sha-head")

	_, err := f.svc.PublishPush(ctx, Push{OwnerID: 583231, RepoName: "repo", CommitID: "sha-head"})
	if !errors.Is(err, apperror.ErrAlreadyPosted) {
		t.Errorf("error = %v, want ErrAlreadyPosted", err)
	}
	if f.submitter.calls != 0 {
		t.Errorf("submitter called %d times, want 0", f.submitter.calls)
	}
}

func TestPublishPush_MissingFields(t *testing.T) {
	f := newPublishFixture(t, nil)

	_, err := f.svc.PublishPush(context.Background(), Push{OwnerID: 0, CommitID: ""})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestPublishPush_UnlinkedOwner(t *testing.T) {
	f := newPublishFixture(t, nil)
	f.users.addUnlinkedUser(987654, "bob")

	_, err := f.svc.PublishPush(context.Background(), Push{OwnerID: 987654, RepoName: "repo", CommitID: "sha-head"})
	if !errors.Is(err, apperror.ErrLinkPrecondition) {
		t.Errorf("error = %v, want ErrLinkPrecondition", err)
	}
}
