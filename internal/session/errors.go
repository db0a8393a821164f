package session

import "errors"

// Sentinel errors for session operations.
//
// InvalidCredentials and InvalidTOTPCode are recoverable locally: callers
// surface them inline and the session state is unchanged. SessionExpired is
// handled silently by the refresh gate where possible and escalates to a
// forced logout when refresh itself fails. Forbidden and NotFound are
// surfaced to the caller and never retried automatically. NetworkFailure on
// best-effort enrichment calls degrades to a safe default instead of failing
// the bootstrap.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTOTPCode    = errors.New("invalid verification code")
	ErrSessionExpired     = errors.New("session expired")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrNotFound           = errors.New("not found")
	ErrNetworkFailure     = errors.New("network failure")

	// ErrNotAuthenticated is returned by operations that require an
	// established session when none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
)
