package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// State is the step-up authentication state.
type State string

const (
	// StateAnonymous is the initial state, and the state reached after
	// logout or an unrecoverable refresh failure.
	StateAnonymous State = "anonymous"

	// StateTwoFactorPending means primary credentials succeeded but the
	// account requires a second factor before a session is granted.
	StateTwoFactorPending State = "two_factor_pending"

	// StateAuthenticated is the only state from which protected operations
	// are reachable.
	StateAuthenticated State = "authenticated"
)

// totpCodePattern matches a well-formed 6-digit verification code.
// Malformed codes are rejected before any network call.
var totpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// IsValidTOTPCode reports whether the code is a 6-digit numeric string.
func IsValidTOTPCode(code string) bool {
	return totpCodePattern.MatchString(code)
}

// Authenticator drives primary login followed by an optional step-up 2FA
// challenge, and the independent enrollment sub-flow.
//
// On a login without 2FA it performs the full session bootstrap through the
// manager. With 2FA required it hands back the temp token and creates no
// session until VerifyTOTP succeeds.
type Authenticator struct {
	backend AuthBackend
	manager *Manager

	mu    sync.RWMutex
	state State
}

// NewAuthenticator creates an authenticator in the anonymous state. It
// follows the manager's bootstrap notifications, so a session established
// by silent resume, hand-off, or a trusted device moves the state machine
// to Authenticated just like an interactive login.
func NewAuthenticator(backend AuthBackend, manager *Manager) *Authenticator {
	a := &Authenticator{
		backend: backend,
		manager: manager,
		state:   StateAnonymous,
	}
	manager.OnEstablished(func() { a.setState(StateAuthenticated) })
	return a
}

// State returns the current authentication state.
func (a *Authenticator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Authenticator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// SubmitCredentials submits the primary email/password pair.
//
// On success without a 2FA requirement it bootstraps the session and
// transitions to Authenticated. On success with 2FA required it transitions
// to TwoFactorPending and returns the temp token without creating a
// session. On invalid credentials the state is unchanged and
// ErrInvalidCredentials is returned. The password is never logged or
// retained beyond this call.
func (a *Authenticator) SubmitCredentials(ctx context.Context, email, password string) (LoginResult, error) {
	result, err := a.backend.Login(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	if result.Requires2FA {
		a.setState(StateTwoFactorPending)
		return result, nil
	}

	if err := a.manager.LoginWithToken(ctx, result.AccessToken); err != nil {
		return LoginResult{}, fmt.Errorf("bootstrapping session: %w", err)
	}
	return result, nil
}

// VerifyTOTP completes the step-up challenge.
//
// The code must be a 6-digit numeric string; malformed codes are rejected
// locally. On success the full access token replaces the temp token and the
// session is bootstrapped. On a wrong code the state remains
// TwoFactorPending — attempt limiting is the backend's concern.
func (a *Authenticator) VerifyTOTP(ctx context.Context, tempToken, code string, rememberDevice bool, deviceLabel string) error {
	if !IsValidTOTPCode(code) {
		return fmt.Errorf("%w: code must be 6 digits", ErrInvalidTOTPCode)
	}

	token, err := a.backend.VerifyTOTP(ctx, tempToken, code, rememberDevice, deviceLabel)
	if err != nil {
		return err
	}

	if err := a.manager.LoginWithToken(ctx, token); err != nil {
		return fmt.Errorf("bootstrapping session: %w", err)
	}
	return nil
}

// Invalidate returns the authenticator to the anonymous state. Called on
// logout and on unrecoverable refresh failure.
func (a *Authenticator) Invalidate() {
	a.setState(StateAnonymous)
}

// BeginEnrollment requests a new shared secret and provisioning artifact.
// Requires an authenticated session; independent of the login flow.
func (a *Authenticator) BeginEnrollment(ctx context.Context) (Enrollment, error) {
	return a.backend.Setup2FA(ctx)
}

// ConfirmEnrollment activates 2FA after a valid code proves possession of
// the enrolled secret.
func (a *Authenticator) ConfirmEnrollment(ctx context.Context, code string) error {
	if !IsValidTOTPCode(code) {
		return fmt.Errorf("%w: code must be 6 digits", ErrInvalidTOTPCode)
	}
	return a.backend.Confirm2FA(ctx, code)
}

// Disable deactivates 2FA. A fresh proof of possession is required, not
// merely an authenticated session, to guard against stolen-session abuse.
func (a *Authenticator) Disable(ctx context.Context, code string) error {
	if !IsValidTOTPCode(code) {
		return fmt.Errorf("%w: code must be 6 digits", ErrInvalidTOTPCode)
	}
	return a.backend.Disable2FA(ctx, code)
}
