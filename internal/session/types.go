package session

import "context"

// User is the published session snapshot. It is created on successful
// login or resume, replaced wholesale whenever server-derived facts are
// refreshed, and destroyed on logout.
type User struct {
	ID           string    `json:"id"`
	IsAdmin      bool      `json:"is_admin"`
	TOTPRequired bool      `json:"totp_required"`
	TOTPEnabled  bool      `json:"totp_enabled"`

	// Views is the server-ordered list of control surfaces granted to this
	// user. The order is meaningful (the first view is the landing surface)
	// and must never be re-sorted.
	Views []ViewRef `json:"views"`
}

// NeedsEnrollment reports whether the user must complete 2FA enrollment
// before reaching any other private surface. The predicate is evaluated
// fresh on every navigation, never cached.
func (u *User) NeedsEnrollment() bool {
	return u.TOTPRequired && !u.TOTPEnabled
}

// ViewRef is a lightweight reference to a granted view.
type ViewRef struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// TOTPStatus describes the user's two-factor state as reported by the
// backend: whether 2FA is active on the account and whether any of the
// user's roles mandate it.
type TOTPStatus struct {
	Enabled  bool `json:"enabled"`
	Required bool `json:"required"`
}

// LoginResult is the outcome of a primary-credential submission.
// Either AccessToken is set (session granted) or Requires2FA is true and
// TempToken carries the short-lived challenge credential. A TempToken must
// never be treated as a session token.
type LoginResult struct {
	AccessToken string
	Requires2FA bool
	TempToken   string
}

// Enrollment holds the material issued when 2FA enrollment begins: the
// shared secret and a scannable provisioning artifact.
type Enrollment struct {
	Secret string `json:"secret"`
	QR     string `json:"qr"`
	URI    string `json:"uri"`
}

// Backend is the slice of the upstream API the session manager depends on.
// Implemented by the upstream client; faked in tests.
type Backend interface {
	// Refresh exchanges the cookie-held refresh credential for a new access
	// token. The credential itself is never visible to callers.
	Refresh(ctx context.Context) (string, error)

	// Logout invalidates the refresh credential server-side.
	Logout(ctx context.Context) error

	// TOTPStatus fetches the user's two-factor state.
	TOTPStatus(ctx context.Context) (TOTPStatus, error)

	// MyViews fetches the user's granted views in server order.
	MyViews(ctx context.Context) ([]ViewRef, error)
}

// AuthBackend is the slice of the upstream API the step-up authenticator
// depends on.
type AuthBackend interface {
	// Login submits primary credentials.
	Login(ctx context.Context, email, password string) (LoginResult, error)

	// VerifyTOTP completes the step-up challenge using the temp token.
	VerifyTOTP(ctx context.Context, tempToken, code string, rememberDevice bool, deviceLabel string) (string, error)

	// Setup2FA begins enrollment for the current session.
	Setup2FA(ctx context.Context) (Enrollment, error)

	// Confirm2FA activates 2FA after the code proves possession.
	Confirm2FA(ctx context.Context, code string) error

	// Disable2FA deactivates 2FA; requires a fresh proof of possession.
	Disable2FA(ctx context.Context, code string) error
}
