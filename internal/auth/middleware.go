package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
// Using a package-private type prevents collisions: only this package can
// create a key of type contextKey, so only this package can read or write
// the user id stored in the context.
type contextKey string

const userIDKey contextKey = "githubUserID"

// SessionCookie is the name of the HttpOnly cookie holding the session JWT.
const SessionCookie = "session"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the session JWT from the HttpOnly cookie, validates it, and stores
// the GitHub user id in the request context. If the token is missing or
// invalid, it returns 401 Unauthorized and stops the request chain.
//
// The JWT lives in an HttpOnly cookie rather than localStorage or a header:
// HttpOnly means JavaScript cannot read it, so XSS cannot steal the session.
// This is also what lets the API resolve the user server-side instead of
// trusting a client-supplied id.
func RequireAuth(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			githubID, err := extractUserID(r, sessions)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, githubID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's GitHub id from the
// request context.
//
// Returns (0, false) if the request is anonymous (no valid session present).
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id != 0
}

// extractUserID reads the session cookie and validates it.
func extractUserID(r *http.Request, sessions *SessionService) (int64, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		// http.ErrNoCookie — not an error as such, just anonymous
		return 0, err
	}

	return sessions.Validate(cookie.Value)
}
