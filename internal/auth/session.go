// Package auth provides the OAuth providers and signed-session utilities.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. User visits /auth/github/login → redirected to GitHub
// 2. GitHub calls back /auth/github/callback with a code
// 3. Server exchanges code for the GitHub profile + token, upserts user in DB
// 4. Server issues a session JWT, stores it in an HttpOnly cookie
// 5. On subsequent API calls, middleware reads the cookie, validates the JWT,
//    and sets the GitHub user id in the request context
//
// The LinkedIn flow rides on top: the logged-in user hits /auth/linkedin,
// and the OAuth state parameter for that second flow is itself a short-lived
// signed token carrying the user's id. That keeps the second flow stateless
// on the server and stops a client from linking a LinkedIn account to an
// arbitrary user id of their choosing.
//
// WHY JWT?
// The server doesn't need to store session data — the user id and expiry are
// inside the signed token, and the signature ensures nobody can tamper with
// it without the secret key. The same applies to the link-state token.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer            = "commitcast"
	linkStateAudience = "linkedin-link"

	// SessionLifetime is how long a login cookie stays valid.
	SessionLifetime = 24 * time.Hour

	// linkStateLifetime bounds how long a LinkedIn authorization redirect can
	// sit unapproved before the callback rejects it.
	linkStateLifetime = 10 * time.Minute
)

// SessionService signs and verifies the session cookie and the LinkedIn
// link-state token. It holds the HMAC secret used for both; the same secret
// must be used for signing and verifying.
type SessionService struct {
	secret []byte
}

// NewSessionService creates a SessionService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSessionService(secret string) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &SessionService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given GitHub user id.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key for signing
// and verifying, fine for a single-server deployment.
func (s *SessionService) Generate(githubID int64) (string, error) {
	return s.sign(githubID, SessionLifetime, nil)
}

// Validate parses and verifies a session token, returning the GitHub user id
// it encodes.
//
// Checks performed by the jwt library: signature, expiry, issuer, and the
// algorithm itself (jwt.WithValidMethods prevents algorithm-confusion
// attacks where a token claims "none" or a different scheme).
func (s *SessionService) Validate(tokenStr string) (int64, error) {
	return s.verify(tokenStr, nil)
}

// GenerateLinkState creates the OAuth state parameter for the LinkedIn flow:
// a 10-minute token carrying the GitHub user id, with a distinct audience so
// a session cookie can never be replayed as link state (or vice versa).
func (s *SessionService) GenerateLinkState(githubID int64) (string, error) {
	return s.sign(githubID, linkStateLifetime, []string{linkStateAudience})
}

// ValidateLinkState verifies a link-state token and returns the GitHub user
// id the LinkedIn credential should be attached to.
func (s *SessionService) ValidateLinkState(tokenStr string) (int64, error) {
	return s.verify(tokenStr, []string{linkStateAudience})
}

func (s *SessionService) sign(githubID int64, lifetime time.Duration, audience []string) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(githubID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			Issuer:    issuer,
			Audience:  audience,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

func (s *SessionService) verify(tokenStr string, audience []string) (int64, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	}
	for _, aud := range audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token claims")
	}

	// A session token (no audience) must not pass as link state and the other
	// way around. jwt.WithAudience covers the link-state direction; this
	// covers tokens that carry an audience being used as plain sessions.
	if len(audience) == 0 && len(c.Audience) != 0 {
		return 0, fmt.Errorf("auth: token audience mismatch")
	}

	githubID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || githubID == 0 {
		return 0, fmt.Errorf("auth: token has no valid subject")
	}

	return githubID, nil
}
