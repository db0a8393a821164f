// Package session implements the authenticated session core for Panel Core.
//
// It maintains a user's session against the HomeMatrix backend:
//   - TokenStore: durable, process-local storage of the current access token
//   - DecodeIdentity: unverified token payload hints for local decisions
//   - Gate: transparent refresh-once-then-retry around authorized requests
//   - Authenticator: primary login plus step-up 2FA state machine
//   - Manager: the session façade owning the published User snapshot
//   - Authorize: explicit allow-or-redirect navigation verdicts
//
// Two credentials exist. The access token is short-lived, sent only as an
// Authorization bearer value, and replaced on every login, refresh, or 2FA
// verification. The refresh credential is an HTTP-only cookie scoped to the
// backend origin; it lives exclusively in the HTTP client's cookie jar and
// is never readable by code in this package.
package session
