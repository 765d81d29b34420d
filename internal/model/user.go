// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// GitHub OAuth is the identity provider, so the primary key is GitHub's
// numeric user ID — stable for the lifetime of the GitHub account. We key
// directly on it rather than generating an internal id: everything else in
// the system (commits, webhook payloads, API paths) identifies users by
// this number anyway.
//
// The LinkedIn fields are an all-or-nothing pair: both set once the user
// completes the LinkedIn OAuth flow, both empty before that and again after
// disconnect. The repository enforces this by mutating them in a single
// statement — a user is never half-linked.
type User struct {
	GitHubID      int64     `json:"githubId"      db:"github_id"`
	GitHubLogin   string    `json:"githubLogin"   db:"github_login"`   // GitHub username, e.g. "alice"
	GitHubToken   string    `json:"-"             db:"github_token"`   // OAuth bearer token — never serialized
	LinkedInID    string    `json:"linkedinId"    db:"linkedin_id"`    // LinkedIn member id (empty until linked)
	LinkedInToken string    `json:"-"             db:"linkedin_token"` // OAuth bearer token (empty until linked)
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt"     db:"updated_at"`
}

// Linked reports whether the user has a LinkedIn credential stored.
// Both fields are checked even though the repository writes them as a pair —
// a row that somehow violates the invariant is treated as unlinked.
func (u *User) Linked() bool {
	return u.LinkedInToken != "" && u.LinkedInID != ""
}

// LinkStatus is the user-visible projection of a User's link state.
// It is derived on demand, never stored (see service.LinkService.Status).
type LinkStatus struct {
	GitHubID       int64  `json:"github_id"`
	GitHubUsername string `json:"github_username"`
	Linked         bool   `json:"linked"`
}
