package linkedinapi

import (
	"fmt"
	"net/http"

	"github.com/sakif/commitcast/internal/apperror"
)

// publisherError maps a submission failure onto the application taxonomy.
//
// status == 0 means the request never produced a response (network error,
// timeout) — transient, the commit was not posted, retry is safe. A 401/403
// means the stored token was rejected; retrying cannot help until the user
// re-links. Everything else from LinkedIn, including the occasional opaque
// 5xx, is treated as transient: LinkedIn either did not create the post or
// created it and failed to say so, and the caller's already-posted guard
// makes a cautious retry the safer default.
func publisherError(status int, cause error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("linkedinapi: submission rejected (status %d): %v: %w", status, cause, apperror.Credential("LinkedIn"))
	case status == 0:
		return fmt.Errorf("linkedinapi: submission failed: %v: %w", cause, apperror.TransientPublish())
	default:
		return fmt.Errorf("linkedinapi: submission failed (status %d): %v: %w", status, cause, apperror.TransientPublish())
	}
}
