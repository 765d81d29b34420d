// Package apperror defines the application's error taxonomy.
//
// Every failure that crosses a component boundary is converted into one of
// the sentinel kinds below before it reaches the HTTP layer. Handlers map
// kinds to status codes with errors.Is; raw provider error bodies are logged
// at the component that saw them and never relayed to the client.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrForbidden        = errors.New("forbidden")
	ErrAuthExchange     = errors.New("auth exchange failed")       // OAuth code/token exchange failed
	ErrLinkPrecondition = errors.New("link precondition not met")  // LinkedIn link attempted before GitHub login
	ErrUpstream         = errors.New("upstream unavailable")       // GitHub read path errored
	ErrCredential       = errors.New("credential invalid")         // stored token rejected by the platform
	ErrTransientPublish = errors.New("transient publish failure")  // network/5xx from LinkedIn, safe to retry
	ErrAlreadyPosted    = errors.New("commit already posted")      // idempotence guard, not a real failure
)

type AppError struct {
	Err     error  // sentinel kind (for errors.Is)
	Message string // human-readable, safe to show to the client
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthExchange wraps a failed OAuth code-for-token exchange. The user-facing
// remedy is always the same: start the login flow again.
func AuthExchange(platform string) *AppError {
	return &AppError{
		Err:     ErrAuthExchange,
		Message: fmt.Sprintf("%s authentication failed, please try logging in again", platform),
	}
}

// LinkPrecondition signals that the LinkedIn flow was started for a user who
// has never completed GitHub login. The GitHub identity is the primary key —
// a LinkedIn credential with no owning user would be an orphan.
func LinkPrecondition() *AppError {
	return &AppError{
		Err:     ErrLinkPrecondition,
		Message: "log in with GitHub before connecting LinkedIn",
	}
}

// NotLinked signals a publish attempt by a user with no LinkedIn credential
// stored. Same kind as LinkPrecondition — the remedy is completing the link
// flow — with the message pointing at the missing half.
func NotLinked() *AppError {
	return &AppError{
		Err:     ErrLinkPrecondition,
		Message: "connect your LinkedIn account before posting",
	}
}

// Upstream signals a failed GitHub read. No internal retry — this is a read
// path and the caller may simply re-request.
func Upstream(message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
	}
}

// Credential signals that a stored platform token was rejected (expired or
// revoked). The remedy is re-linking, not retrying.
func Credential(platform string) *AppError {
	return &AppError{
		Err:     ErrCredential,
		Message: fmt.Sprintf("your %s connection has expired, please reconnect your account", platform),
	}
}

// TransientPublish signals a network failure or 5xx from LinkedIn. Safe to
// retry manually: the commit was not marked posted.
func TransientPublish() *AppError {
	return &AppError{
		Err:     ErrTransientPublish,
		Message: "posting to LinkedIn failed temporarily, please try again",
	}
}

// AlreadyPosted is the duplicate-publish guard. Callers that want idempotent
// semantics treat it as success; it is surfaced as an error so they decide.
func AlreadyPosted(commitID string) *AppError {
	return &AppError{
		Err:     ErrAlreadyPosted,
		Message: fmt.Sprintf("commit %s has already been posted", commitID),
	}
}
