package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/commitcast/internal/auth"
	"github.com/sakif/commitcast/internal/service"
)

// AuthHandler manages the two OAuth flows and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin      → redirect to GitHub's authorization page
//   - HandleGitHubCallback   → receive the code, establish user + session
//   - HandleLinkedInBegin    → redirect the logged-in user to LinkedIn
//   - HandleLinkedInCallback → receive the code, store the credential pair
//   - HandleLogout           → clear the session cookie
//
// Everything stateful goes through LinkService; this layer only parses the
// HTTP shape of the flows (query params, cookies, redirects).
type AuthHandler struct {
	links     *service.LinkService
	clientURL string
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. clientURL is where browsers are
// sent after a flow completes — the UI is a separate application.
func NewAuthHandler(links *service.LinkService, clientURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		links:     links,
		clientURL: clientURL,
		logger:    logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes — long enough to approve, short enough to limit risk
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.links.BeginGitHubAuth(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the GitHub login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code, upsert the user, issue a session token
//  3. Store the session token in an HttpOnly cookie
//  4. Redirect to the client application
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("github callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// GitHub reports "user denied authorization" as an error parameter.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.clientURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	result, err := h.links.CompleteGitHubAuth(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
	// Secure should be true in production (HTTPS only).
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.clientURL, http.StatusSeeOther)
}

// HandleLinkedInBegin redirects the logged-in user to LinkedIn's
// authorization page.
//
// HTTP: GET /auth/linkedin
// Auth: required — the user to link is resolved from the session, never
// from a client-supplied id. Fails 412 if the session user somehow has no
// account row (GitHub login is the precondition for linking).
func (h *AuthHandler) HandleLinkedInBegin(w http.ResponseWriter, r *http.Request) {
	githubID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	authURL, err := h.links.BeginLinkedInAuth(r.Context(), githubID)
	if err != nil {
		h.logger.Warn("linkedin begin failed",
			slog.Int64("githubID", githubID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleLinkedInCallback completes the LinkedIn link flow.
//
// HTTP: GET /auth/linkedin/callback?code=xxx&state=yyy
//
// No state cookie here: the state parameter is itself a signed token naming
// the user (issued by BeginLinkedInAuth), so verifying its signature covers
// both CSRF and user resolution in one step.
func (h *AuthHandler) HandleLinkedInCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("linkedin callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.clientURL+"?linkedin=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing OAuth code or state", http.StatusBadRequest)
		return
	}

	if _, err := h.links.CompleteLinkedInAuth(r.Context(), code, state); err != nil {
		h.logger.Error("linkedin callback failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	http.Redirect(w, r, h.clientURL+"?linkedin=connected", http.StatusSeeOther)
}

// HandleLogout clears the session cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// POST, not GET: logout is state-changing, and GET would be vulnerable to
// CSRF and browser pre-fetching. Since sessions are stateless JWTs, logout
// just deletes the client-side cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
