package handler

import (
	"errors"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/service"
)

// WebhookHandler receives GitHub push events and turns them into automated
// LinkedIn posts through the same publish pipeline as the manual endpoints.
//
// Signature verification and payload parsing are delegated to go-github:
// ValidatePayload checks the X-Hub-Signature-256 HMAC against the shared
// webhook secret and rejects anything GitHub didn't send.
type WebhookHandler struct {
	publish *service.PublishService
	secret  []byte
	logger  *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. secret is the webhook secret
// configured on the GitHub repository.
func NewWebhookHandler(publish *service.PublishService, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		publish: publish,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// HandleWebhook processes a GitHub webhook delivery.
//
// HTTP: POST /webhook
//
// Push events publish the head commit for the repository owner's account.
// Everything else is acknowledged and ignored — GitHub retries deliveries
// that don't return 2xx, and retrying a ping or pull_request event is
// pointless.
//
// Outcomes that are not failures from the webhook's point of view get a 200
// with a message instead of an error status: an unknown user (a repo we
// received a hook for but whose owner never logged in), an unlinked user,
// and an already-posted head commit. Returning 4xx/5xx for those would just
// make GitHub redeliver the same payload.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Warn("webhook signature validation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "invalid_signature",
			Message: "webhook signature verification failed",
		})
		return
	}

	event, err := gh.ParseWebHook(gh.WebHookType(r), payload)
	if err != nil {
		h.logger.Warn("webhook payload parsing failed", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("payload", "unparseable webhook payload"))
		return
	}

	push, ok := event.(*gh.PushEvent)
	if !ok {
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "ignored",
			Message: "event type not handled",
		})
		return
	}

	head := push.GetHeadCommit()
	if head == nil {
		// Branch deletions and tag pushes have no head commit.
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "ignored",
			Message: "push carries no head commit",
		})
		return
	}

	result, err := h.publish.PublishPush(r.Context(), service.Push{
		OwnerID:  push.GetRepo().GetOwner().GetID(),
		RepoName: push.GetRepo().GetName(),
		RepoURL:  push.GetRepo().GetHTMLURL(),
		CommitID: head.GetID(),
		Message:  head.GetMessage(),
		Author:   head.GetAuthor().GetName(),
	})
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrAlreadyPosted):
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  "skipped",
				Message: "commit was already posted",
			})
		case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrLinkPrecondition):
			h.logger.Info("webhook for an unregistered or unlinked user",
				slog.Int64("ownerID", push.GetRepo().GetOwner().GetID()),
			)
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  "skipped",
				Message: "no linked account for this repository owner",
			})
		default:
			h.logger.Error("webhook publish failed",
				slog.Int64("ownerID", push.GetRepo().GetOwner().GetID()),
				slog.String("commitID", head.GetID()),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Status         string `json:"status"`
		LinkedInPostID string `json:"linkedin_post_id,omitempty"`
	}{
		Status:         "success",
		LinkedInPostID: result.PostID,
	})
}
