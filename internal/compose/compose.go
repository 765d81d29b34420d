// Package compose renders commits into LinkedIn post bodies.
//
// Everything here is a pure function — no I/O, no clocks, no randomness.
// That keeps the templates trivially testable and means a composed post is
// fully determined by its inputs, which matters for the duplicate-post
// guarantees upstream: the same commit always composes to the same text.
package compose

import (
	"fmt"
	"strings"

	"github.com/sakif/commitcast/internal/model"
)

// MaxPostLength is LinkedIn's limit on share commentary. Output longer than
// this is cut at a rune boundary and flagged — never silently truncated.
const MaxPostLength = 3000

// Post is a composed post body. Truncated is set when the text was cut to
// fit MaxPostLength, so callers can surface it rather than swallow it.
type Post struct {
	Text      string
	Truncated bool
}

// Single renders one commit as a post.
func Single(commit model.Commit, repoFullName string) Post {
	text := fmt.Sprintf("Check out this update from my repository \"%s\":\n\n\"%s\"", repoFullName, commit.Message)
	return clamp(text)
}

// Digest renders a batch of commits as one post, grouped by repository.
// Group order follows first appearance in the input and commits stay in
// input order within each group — the caller's ordering is the ordering.
// Empty input produces an explicit no-activity message, never a panic.
func Digest(commits []model.Commit) Post {
	if len(commits) == 0 {
		return Post{Text: "No recent activity to share."}
	}

	byRepo := make(map[string][]model.Commit)
	var repoOrder []string
	for _, c := range commits {
		if _, seen := byRepo[c.Repo]; !seen {
			repoOrder = append(repoOrder, c.Repo)
		}
		byRepo[c.Repo] = append(byRepo[c.Repo], c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A quick digest of my latest work (%d commits):\n", len(commits))
	for _, repo := range repoOrder {
		fmt.Fprintf(&b, "\n%s:\n", repo)
		for _, c := range byRepo[repo] {
			fmt.Fprintf(&b, "- %s\n", firstLine(c.Message))
		}
	}

	return clamp(strings.TrimRight(b.String(), "\n"))
}

// FromPush renders the automated post for a webhook push event.
func FromPush(author, repoName, commitMessage, repoURL string) Post {
	if author == "" {
		author = "Someone"
	}
	text := fmt.Sprintf(
		"🚀 %s just pushed to %s!\n\n"+
			"💬 Commit message: \"%s\"\n\n"+
			"🔗 Check it out: %s\n\n"+
			"#buildinpublic #opensource",
		author, repoName, commitMessage, repoURL,
	)
	return clamp(text)
}

// clamp enforces MaxPostLength, cutting at a rune boundary.
func clamp(text string) Post {
	runes := []rune(text)
	if len(runes) <= MaxPostLength {
		return Post{Text: text}
	}
	return Post{Text: string(runes[:MaxPostLength]), Truncated: true}
}

// firstLine returns the subject line of a commit message.
func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimRight(message[:i], "\r")
	}
	return message
}
