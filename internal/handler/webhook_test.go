package handler_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/commitcast/internal/handler"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository/sqlite"
	"github.com/sakif/commitcast/internal/service"
)

const webhookSecret = "test-webhook-secret"

// pushPayload is a minimal GitHub push event for the fields the handler
// reads.
const pushPayload = `{
	"repository": {
		"name": "repo",
		"html_url": "https://github.com/alice/repo",
		"owner": {"id": 583231, "login": "alice"}
	},
	"head_commit": {
		"id": "sha-head",
		"message": "add feature",
		"author": {"name": "Alice"}
	}
}`

type webhookFixture struct {
	h         *handler.WebhookHandler
	db        *sqlite.DB
	submitter *fakeSubmitter
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	submitter := &fakeSubmitter{}
	factory := func(token string) service.CommitLister { return &fakeLister{} }
	commitSvc := service.NewCommitService(db, db, factory, logger)
	publishSvc := service.NewPublishService(db, db, commitSvc, submitter, logger)

	return &webhookFixture{
		h:         handler.NewWebhookHandler(publishSvc, webhookSecret, logger),
		db:        db,
		submitter: submitter,
	}
}

func (f *webhookFixture) seedLinkedOwner(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	user := &model.User{GitHubID: 583231, GitHubLogin: "alice", GitHubToken: "gh-token"}
	if err := f.db.Upsert(ctx, user); err != nil {
		t.Fatalf("seeding owner: %v", err)
	}
	if _, err := f.db.SetLinkedIn(ctx, 583231, "li-token", "li-member"); err != nil {
		t.Fatalf("linking owner: %v", err)
	}
}

// deliver sends a webhook request signed the way GitHub signs deliveries:
// an HMAC-SHA256 of the body, hex-encoded in X-Hub-Signature-256.
func (f *webhookFixture) deliver(t *testing.T, event, payload, secret string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	rr := httptest.NewRecorder()
	f.h.HandleWebhook(rr, req)
	return rr
}

func TestHandleWebhook_PushPublishes(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedLinkedOwner(t)

	rr := f.deliver(t, "push", pushPayload, webhookSecret)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Status         string `json:"status"`
		LinkedInPostID string `json:"linkedin_post_id"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "urn:li:share:42", res.LinkedInPostID)
	assert.Equal(t, 1, f.submitter.calls)

	posted, err := f.db.IsPosted(context.Background(), 583231, "sha-head")
	assert.NoError(t, err)
	assert.True(t, posted)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedLinkedOwner(t)

	rr := f.deliver(t, "push", pushPayload, "wrong-secret")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 0, f.submitter.calls)
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(pushPayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")

	rr := httptest.NewRecorder()
	f.h.HandleWebhook(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandleWebhook_DuplicateDeliverySkipped(t *testing.T) {
	// GitHub redelivers on its own schedule; the second delivery of the
	// same head commit must not produce a second post.
	f := newWebhookFixture(t)
	f.seedLinkedOwner(t)

	first := f.deliver(t, "push", pushPayload, webhookSecret)
	assert.Equal(t, http.StatusOK, first.Code)

	second := f.deliver(t, "push", pushPayload, webhookSecret)
	assert.Equal(t, http.StatusOK, second.Code)

	var res struct {
		Status string `json:"status"`
	}
	assert.NoError(t, json.NewDecoder(second.Body).Decode(&res))
	assert.Equal(t, "skipped", res.Status)
	assert.Equal(t, 1, f.submitter.calls)
}

func TestHandleWebhook_ManuallyPostedCommitSkipped(t *testing.T) {
	// Manual posts and webhook posts share one ledger.
	f := newWebhookFixture(t)
	f.seedLinkedOwner(t)
	assert.NoError(t, f.db.MarkPosted(context.Background(), 583231, "sha-head"))

	rr := f.deliver(t, "push", pushPayload, webhookSecret)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, f.submitter.calls)
}

func TestHandleWebhook_UnknownOwnerSkipped(t *testing.T) {
	// A hook from a repo whose owner never logged in is acknowledged, not
	// errored — a non-2xx would only make GitHub redeliver.
	f := newWebhookFixture(t)

	rr := f.deliver(t, "push", pushPayload, webhookSecret)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Status string `json:"status"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "skipped", res.Status)
}

func TestHandleWebhook_NonPushEventIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	rr := f.deliver(t, "ping", `{"zen":"Keep it logically awesome."}`, webhookSecret)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res struct {
		Status string `json:"status"`
	}
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "ignored", res.Status)
}

func TestHandleWebhook_NoHeadCommitIgnored(t *testing.T) {
	// Branch deletions push with no head commit.
	payload := `{"repository":{"name":"repo","owner":{"id":583231}},"deleted":true}`
	f := newWebhookFixture(t)
	f.seedLinkedOwner(t)

	rr := f.deliver(t, "push", payload, webhookSecret)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, f.submitter.calls)
}
