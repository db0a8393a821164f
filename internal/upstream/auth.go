package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/homematrix/panel-core/internal/session"
)

// loginResponse is the wire shape of POST /api/auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	Requires2FA bool   `json:"requires_2fa"`
	TempToken   string `json:"temp_token"`
}

// Login submits primary credentials. A 401 maps to ErrInvalidCredentials;
// the cookie jar silently captures the refresh cookie on success.
func (c *Client) Login(ctx context.Context, email, password string) (session.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	var resp loginResponse
	err := c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/login", body, &resp, nil)
	if err != nil {
		// On the login endpoint a 401 means bad credentials, not an
		// expired session.
		if errors.Is(err, session.ErrSessionExpired) {
			return session.LoginResult{}, session.ErrInvalidCredentials
		}
		return session.LoginResult{}, err
	}

	return session.LoginResult{
		AccessToken: resp.AccessToken,
		Requires2FA: resp.Requires2FA,
		TempToken:   resp.TempToken,
	}, nil
}

// VerifyTOTP completes the step-up challenge. The temp token rides as an
// explicit bearer header on the bare client: it must never pass through the
// refresh gate, because it is not a session token and a 401 here means a
// wrong code, not an expired session.
func (c *Client) VerifyTOTP(ctx context.Context, tempToken, code string, rememberDevice bool, deviceLabel string) (string, error) {
	body := map[string]any{
		"code":            code,
		"remember_device": rememberDevice,
		"device_name":     deviceLabel,
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/2fa/verify", body, &resp, bearerHeader(tempToken))
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) || isBadRequest(err) {
			return "", session.ErrInvalidTOTPCode
		}
		return "", err
	}
	return resp.AccessToken, nil
}

// Setup2FA begins enrollment: the backend issues a fresh shared secret and
// a scannable provisioning artifact.
func (c *Client) Setup2FA(ctx context.Context) (session.Enrollment, error) {
	var resp session.Enrollment
	err := c.doJSON(ctx, c.authorized, http.MethodPost, "/api/auth/2fa/setup", struct{}{}, &resp, nil)
	return resp, err
}

// Confirm2FA activates 2FA after the code proves possession.
func (c *Client) Confirm2FA(ctx context.Context, code string) error {
	err := c.doJSON(ctx, c.authorized, http.MethodPost, "/api/auth/2fa/confirm",
		map[string]string{"code": code}, nil, nil)
	if isBadRequest(err) {
		return session.ErrInvalidTOTPCode
	}
	return err
}

// Disable2FA deactivates 2FA after a fresh proof of possession.
func (c *Client) Disable2FA(ctx context.Context, code string) error {
	err := c.doJSON(ctx, c.authorized, http.MethodPost, "/api/auth/2fa/disable",
		map[string]string{"code": code}, nil, nil)
	if isBadRequest(err) {
		return session.ErrInvalidTOTPCode
	}
	return err
}

// TOTPStatus fetches the user's two-factor state.
func (c *Client) TOTPStatus(ctx context.Context) (session.TOTPStatus, error) {
	var resp session.TOTPStatus
	err := c.doJSON(ctx, c.authorized, http.MethodGet, "/api/auth/2fa/status", nil, &resp, nil)
	return resp, err
}

// Refresh exchanges the cookie-held refresh credential for a new access
// token. Runs on the bare client so a 401 cannot recurse into the gate.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/refresh", struct{}{}, &resp, nil)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout invalidates the refresh credential server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/logout", struct{}{}, nil, nil)
}

// Register submits a self-registration request; accounts start in the
// pending state until an administrator approves them.
func (c *Client) Register(ctx context.Context, email, fullName, password, reason string) error {
	body := map[string]string{
		"email":          email,
		"full_name":      fullName,
		"password":       password,
		"request_reason": reason,
	}
	return c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/register", body, nil, nil)
}

// RequestPasswordReset asks the backend to email a reset link.
// The response is intentionally uniform whether or not the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/forgot-password",
		map[string]string{"email": email}, nil, nil)
}

// ConfirmPasswordReset sets a new password using an emailed reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/reset-password", body, nil, nil)
}

// CheckTrustedDevice asks whether this device holds a valid trust cookie
// from an earlier remember-device verification. When trusted, the backend
// returns a full access token and the step-up challenge is skipped.
func (c *Client) CheckTrustedDevice(ctx context.Context, tempToken string) (string, bool, error) {
	var resp struct {
		Trusted     bool   `json:"trusted"`
		AccessToken string `json:"access_token"`
	}
	err := c.doJSON(ctx, c.bare, http.MethodPost, "/api/auth/2fa/check-device", struct{}{}, &resp, bearerHeader(tempToken))
	if err != nil {
		return "", false, err
	}
	return resp.AccessToken, resp.Trusted, nil
}

// isBadRequest reports whether err wraps a 400 response.
func isBadRequest(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusBadRequest
}
