package model

import "time"

// PublishStatus is the derived publish state of a commit.
//
// Commits themselves are never persisted — they are fetched live from GitHub
// on demand. Only the posted/unposted fact is durable (the posted-commit
// ledger in the repository layer), so re-fetching the same commit later still
// reports "posted". Once posted, a commit never reverts.
type PublishStatus string

const (
	StatusUnposted PublishStatus = "unposted"
	StatusPosted   PublishStatus = "posted"
)

// Commit is a single commit fetched from GitHub, annotated with its publish
// status. ID is GitHub's commit SHA — unique per repository and stable, which
// makes it the dedup key for the posted ledger.
type Commit struct {
	ID         string        `json:"id"`
	Repo       string        `json:"repo"` // full name, e.g. "alice/repo"
	Message    string        `json:"message"`
	Author     string        `json:"author"`
	URL        string        `json:"url"`
	AuthoredAt time.Time     `json:"authoredAt"`
	Status     PublishStatus `json:"status"`
}
