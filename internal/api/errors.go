package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/homematrix/panel-core/internal/session"
	"github.com/homematrix/panel-core/internal/view"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeUnauthorized  = "unauthorised"
	ErrCodeForbidden     = "forbidden"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeInvalidCode   = "invalid_code"
	ErrCodeUpstreamDown  = "upstream_unreachable"
	ErrCodeSessionLoad   = "session_loading"
	ErrCodeInternal      = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeMappedError translates the session error taxonomy onto HTTP
// statuses for the panel-facing surface.
func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCreds, "invalid credentials")
	case errors.Is(err, session.ErrInvalidTOTPCode):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidCode, "invalid verification code")
	case errors.Is(err, session.ErrSessionExpired), errors.Is(err, session.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "session expired")
	case errors.Is(err, session.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions")
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, view.ErrEntityNotInView):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "entity is not part of this view")
	case errors.Is(err, session.ErrNetworkFailure):
		writeError(w, http.StatusBadGateway, ErrCodeUpstreamDown, "backend unreachable")
	default:
		writeInternalError(w, "internal server error")
	}
}
