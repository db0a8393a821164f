package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/homematrix/panel-core/internal/session"
	"github.com/homematrix/panel-core/internal/upstream"
)

// sessionStatus is the response shape for GET /session.
type sessionStatus struct {
	Loading bool          `json:"loading"`
	State   session.State `json:"state"`
	User    *session.User `json:"user,omitempty"`
	Landing string        `json:"landing,omitempty"`
}

// handleSessionStatus reports the current session snapshot. Panels poll
// this once at startup to decide which surface to render; while loading is
// true they render neither.
func (s *Server) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	user := s.manager.Current()
	status := sessionStatus{
		Loading: s.manager.Loading(),
		State:   s.auth.State(),
		User:    user,
	}
	if user != nil {
		status.Landing = session.LandingPath(user)
	}
	writeJSON(w, http.StatusOK, status)
}

// loginRequest is the request body for POST /session/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /session/login.
type loginResponse struct {
	Requires2FA bool          `json:"requires_2fa"`
	TempToken   string        `json:"temp_token,omitempty"`
	User        *session.User `json:"user,omitempty"`
	Landing     string        `json:"landing,omitempty"`
}

// handleLogin submits primary credentials to the backend.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := s.auth.SubmitCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if result.Requires2FA {
		writeJSON(w, http.StatusOK, loginResponse{
			Requires2FA: true,
			TempToken:   result.TempToken,
		})
		return
	}

	user := s.manager.Current()
	s.hub.Broadcast(ChannelSession, map[string]string{"event": "established"})
	writeJSON(w, http.StatusOK, loginResponse{
		User:    user,
		Landing: session.LandingPath(user),
	})
}

// verifyRequest is the request body for POST /session/2fa/verify.
type verifyRequest struct {
	TempToken      string `json:"temp_token"`
	Code           string `json:"code"`
	RememberDevice bool   `json:"remember_device"`
	DeviceName     string `json:"device_name"`
}

// handleVerifyTOTP completes the step-up challenge.
func (s *Server) handleVerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TempToken == "" {
		writeBadRequest(w, "temp_token is required")
		return
	}

	if err := s.auth.VerifyTOTP(r.Context(), req.TempToken, req.Code, req.RememberDevice, req.DeviceName); err != nil {
		writeMappedError(w, err)
		return
	}

	user := s.manager.Current()
	s.hub.Broadcast(ChannelSession, map[string]string{"event": "established"})
	writeJSON(w, http.StatusOK, loginResponse{
		User:    user,
		Landing: session.LandingPath(user),
	})
}

// handleCheckDevice asks the backend whether this gateway holds a valid
// trusted-device cookie, skipping the step-up challenge when it does.
func (s *Server) handleCheckDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TempToken string `json:"temp_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TempToken == "" {
		writeBadRequest(w, "temp_token is required")
		return
	}

	token, trusted, err := s.upstream.CheckTrustedDevice(r.Context(), req.TempToken)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if !trusted {
		writeJSON(w, http.StatusOK, map[string]any{"trusted": false})
		return
	}

	if err := s.manager.LoginWithToken(r.Context(), token); err != nil {
		writeMappedError(w, err)
		return
	}
	user := s.manager.Current()
	s.hub.Broadcast(ChannelSession, map[string]string{"event": "established"})
	writeJSON(w, http.StatusOK, map[string]any{
		"trusted": true,
		"user":    user,
		"landing": session.LandingPath(user),
	})
}

// handleHandoff consumes an identity-provider callback URL. The hand-off
// parameters are one-shot: the caller must replace its visible address
// with the returned clean URL regardless of outcome.
func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		writeBadRequest(w, "invalid callback URL")
		return
	}

	handoff, present := upstream.ParseHandoff(u)
	clean := upstream.StripHandoff(u).String()

	if !present {
		writeJSON(w, http.StatusOK, map[string]any{"handled": false, "clean_url": clean})
		return
	}
	if handoff.Pending {
		writeJSON(w, http.StatusOK, map[string]any{
			"handled":   true,
			"pending":   true,
			"clean_url": clean,
		})
		return
	}

	if err := s.manager.LoginWithToken(r.Context(), handoff.Token); err != nil {
		writeMappedError(w, err)
		return
	}
	user := s.manager.Current()
	s.hub.Broadcast(ChannelSession, map[string]string{"event": "established"})
	writeJSON(w, http.StatusOK, map[string]any{
		"handled":   true,
		"user":      user,
		"landing":   session.LandingPath(user),
		"clean_url": clean,
	})
}

// handleLogout ends the session and tells every panel to fall back to the
// login surface.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.watchers.stopAll()

	if err := s.manager.Logout(r.Context()); err != nil {
		writeMappedError(w, err)
		return
	}
	s.auth.Invalidate()
	s.hub.Broadcast(ChannelSession, map[string]string{"event": "cleared"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleNavigate evaluates the route guard for a prospective navigation.
// Panels call this before switching surfaces so redirect decisions stay in
// one place.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	class, ok := parseRouteClass(r.URL.Query().Get("class"))
	if !ok {
		writeBadRequest(w, "class must be public, private, or admin")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, "path is required")
		return
	}

	verdict := session.Authorize(s.manager.Current(), class, path)
	writeJSON(w, http.StatusOK, map[string]any{
		"allow":       verdict.Allow,
		"redirect_to": verdict.RedirectTo,
	})
}

func parseRouteClass(raw string) (session.RouteClass, bool) {
	switch raw {
	case "public":
		return session.RoutePublic, true
	case "private":
		return session.RoutePrivate, true
	case "admin":
		return session.RouteAdmin, true
	default:
		return 0, false
	}
}

// handleSetup2FA begins 2FA enrollment for the current session.
func (s *Server) handleSetup2FA(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.auth.BeginEnrollment(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

// handleConfirm2FA activates 2FA and refreshes the published facts so the
// enrollment gate lifts immediately.
func (s *Server) handleConfirm2FA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.auth.ConfirmEnrollment(r.Context(), req.Code); err != nil {
		writeMappedError(w, err)
		return
	}
	if err := s.manager.ReloadFacts(r.Context()); err != nil {
		s.logger.Warn("fact reload after enrollment failed", "error", err)
	}
	writeJSON(w, http.StatusOK, s.manager.Current())
}

// handleDisable2FA deactivates 2FA after a fresh proof of possession.
func (s *Server) handleDisable2FA(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.auth.Disable(r.Context(), req.Code); err != nil {
		writeMappedError(w, err)
		return
	}
	if err := s.manager.ReloadFacts(r.Context()); err != nil {
		s.logger.Warn("fact reload after 2fa disable failed", "error", err)
	}
	writeJSON(w, http.StatusOK, s.manager.Current())
}

// handleRegister forwards a self-registration request. The account stays
// pending until an administrator approves it.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
		Reason   string `json:"request_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	if err := s.upstream.Register(r.Context(), req.Email, req.FullName, req.Password, req.Reason); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending_approval"})
}

// handleForgotPassword asks the backend to send a reset link. The response
// is uniform whether or not the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.upstream.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleResetPassword sets a new password using an emailed reset token.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeBadRequest(w, "token and new_password are required")
		return
	}

	if err := s.upstream.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
