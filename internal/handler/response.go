package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "user not found with id 42"}
//
// The frontend always knows what fields to expect, regardless of whether
// it's a 400, 404, or 503. The mapping from error kind to status code lives
// here and nowhere else — the service layer never sees HTTP.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/commitcast/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the first body write; that ordering
// is the whole function.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// The service layer returns apperror kinds wrapped with fmt.Errorf("...: %w"),
// so errors.Is walks the chain to classify and errors.As recovers the
// client-safe message. Unknown errors become a generic 500: the raw error
// text might contain SQL, tokens, or upstream response bodies and is logged
// by the components that produced it, never relayed.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrLinkPrecondition):
			status = http.StatusPreconditionFailed
			errorType = "link_precondition"
		case errors.Is(err, apperror.ErrAuthExchange):
			status = http.StatusBadGateway
			errorType = "auth_exchange_failed"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway
			errorType = "upstream_unavailable"
		case errors.Is(err, apperror.ErrCredential):
			status = http.StatusUnauthorized
			errorType = "credential_invalid"
		case errors.Is(err, apperror.ErrTransientPublish):
			status = http.StatusServiceUnavailable
			errorType = "transient_publish_error"
		case errors.Is(err, apperror.ErrAlreadyPosted):
			status = http.StatusConflict
			errorType = "already_posted"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
