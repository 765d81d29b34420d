package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/service"
)

// APIHandler serves the authenticated /api/github/{githubID}/... endpoints.
//
// The {githubID} path segment is kept for URL shape, but it is never
// trusted: every request must carry a valid session, and the path id must
// match the session user or the request fails 403. The session is the
// identity; the path is just addressing.
type APIHandler struct {
	links   *service.LinkService
	commits *service.CommitService
	publish *service.PublishService
	logger  *slog.Logger
}

// NewAPIHandler creates an APIHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAPIHandler(
	links *service.LinkService,
	commits *service.CommitService,
	publish *service.PublishService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		links:   links,
		commits: commits,
		publish: publish,
		logger:  logger,
	}
}

// pathUser resolves and authorizes the {githubID} path parameter against
// the session. Returns (0, false) after writing the error response.
func (h *APIHandler) pathUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sessionID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// RequireAuth already ran — this is belt and braces.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return 0, false
	}

	pathID, err := strconv.ParseInt(chi.URLParam(r, "githubID"), 10, 64)
	if err != nil {
		writeError(w, apperror.ValidationFailed("githubID", "github user id must be numeric"))
		return 0, false
	}

	if pathID != sessionID {
		writeError(w, apperror.Forbidden("you can only act on your own account"))
		return 0, false
	}

	return sessionID, true
}

// HandleStatus returns the user's link status.
//
// HTTP: GET /api/github/{githubID}/status
// → {"github_id": 42, "github_username": "alice", "linked": true}
func (h *APIHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	status, err := h.links.Status(r.Context(), githubID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleCommits returns the user's recent commits with publish status.
//
// HTTP: GET /api/github/{githubID}/commits?repo=owner/name
// The repo parameter is optional; without it the most recently pushed
// repository is used.
func (h *APIHandler) HandleCommits(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	commits, err := h.commits.List(r.Context(), githubID, r.URL.Query().Get("repo"))
	if err != nil {
		h.logger.Error("listing commits failed",
			slog.Int64("githubID", githubID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]model.Commit{"commits": commits})
}

// postCommitRequest is the body of POST .../post_commit.
type postCommitRequest struct {
	CommitID string `json:"commit_id"`
	Repo     string `json:"repo,omitempty"`
}

// statusResponse is the {status, message} envelope the action endpoints
// return, matching what the client expects on both success and error.
type statusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	PostID    string `json:"post_id,omitempty"`
	Truncated bool   `json:"truncated,omitempty"` // post text was cut to fit the platform limit
}

// HandlePostCommit publishes one commit to LinkedIn.
//
// HTTP: POST /api/github/{githubID}/post_commit  {"commit_id": "...", "repo": "owner/name"}
//
// An already-posted commit is reported as success without any outbound
// call — retrying a publish must never double-post, and from the user's
// point of view the desired state ("this commit is on LinkedIn") holds.
func (h *APIHandler) HandlePostCommit(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req postCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}
	if req.CommitID == "" {
		writeError(w, apperror.ValidationFailed("commit_id", "commit_id is required"))
		return
	}

	result, err := h.publish.PublishCommit(r.Context(), githubID, req.CommitID, req.Repo)
	if err != nil {
		if errors.Is(err, apperror.ErrAlreadyPosted) {
			writeJSON(w, http.StatusOK, statusResponse{
				Status:  "success",
				Message: "commit was already posted",
			})
			return
		}
		h.logger.Error("publishing commit failed",
			slog.Int64("githubID", githubID),
			slog.String("commitID", req.CommitID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:    "success",
		Message:   "commit posted to LinkedIn",
		PostID:    result.PostID,
		Truncated: result.Truncated,
	})
}

// postDigestRequest is the body of POST .../post_digest.
type postDigestRequest struct {
	CommitIDs []string `json:"commit_ids"`
	Repo      string   `json:"repo,omitempty"`
}

// HandlePostDigest publishes a batch of commits as one digest post.
//
// HTTP: POST /api/github/{githubID}/post_digest  {"commit_ids": [...], "repo": "owner/name"}
//
// Unlike post_commit, an already-posted id here is a real conflict: the
// digest is all-or-nothing and the caller should drop the posted id and
// resubmit rather than have us silently publish a different digest.
func (h *APIHandler) HandlePostDigest(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req postDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}

	result, err := h.publish.PublishDigest(r.Context(), githubID, req.CommitIDs, req.Repo)
	if err != nil {
		h.logger.Error("publishing digest failed",
			slog.Int64("githubID", githubID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:    "success",
		Message:   "digest posted to LinkedIn",
		PostID:    result.PostID,
		Truncated: result.Truncated,
	})
}

// previewResponse is the body of the preview endpoints, matching the
// {"preview": "..."} shape the client renders.
type previewResponse struct {
	Preview   string `json:"preview"`
	Truncated bool   `json:"truncated,omitempty"`
}

// HandlePreviewPost composes the post for one commit without publishing.
//
// HTTP: POST /api/github/{githubID}/preview_post  {"commit_id": "...", "repo": "owner/name"}
//
// Dry run: nothing is submitted and the posted ledger is untouched, so the
// same commit can be previewed any number of times, before or after it is
// actually posted, with or without a linked LinkedIn account.
func (h *APIHandler) HandlePreviewPost(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req postCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}
	if req.CommitID == "" {
		writeError(w, apperror.ValidationFailed("commit_id", "commit_id is required"))
		return
	}

	result, err := h.publish.PreviewCommit(r.Context(), githubID, req.CommitID, req.Repo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Preview:   result.Text,
		Truncated: result.Truncated,
	})
}

// HandlePreviewDigest composes a digest post without publishing.
//
// HTTP: POST /api/github/{githubID}/preview_digest  {"commit_ids": [...], "repo": "owner/name"}
func (h *APIHandler) HandlePreviewDigest(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	var req postDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON request body"))
		return
	}

	result, err := h.publish.PreviewDigest(r.Context(), githubID, req.CommitIDs, req.Repo)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Preview:   result.Text,
		Truncated: result.Truncated,
	})
}

// HandleDisconnectLinkedIn removes the stored LinkedIn credential.
//
// HTTP: POST /api/github/{githubID}/disconnect_linkedin
// Idempotent: disconnecting twice reports success both times.
func (h *APIHandler) HandleDisconnectLinkedIn(w http.ResponseWriter, r *http.Request) {
	githubID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	if err := h.links.UnlinkLinkedIn(r.Context(), githubID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "LinkedIn disconnected successfully",
	})
}
