package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homematrix/panel-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Wall panel web UI
	r.Handle("/ui/*", http.StripPrefix("/ui", panel.Handler(s.cfg.UIDir)))
	r.Handle("/ui", http.RedirectHandler("/ui/", http.StatusMovedPermanently))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics (no session required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Session lifecycle
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSessionStatus)
			r.Post("/login", s.handleLogin)
			r.Post("/2fa/verify", s.handleVerifyTOTP)
			r.Post("/2fa/check-device", s.handleCheckDevice)
			r.Post("/handoff", s.handleHandoff)
			r.Post("/register", s.handleRegister)
			r.Post("/password/forgot", s.handleForgotPassword)
			r.Post("/password/reset", s.handleResetPassword)

			// Operations on an established session
			r.Group(func(r chi.Router) {
				r.Use(s.sessionMiddleware)
				r.Post("/logout", s.handleLogout)
				r.Post("/ws-ticket", s.handleWSTicket)
				r.Get("/navigate", s.handleNavigate)
				r.Post("/2fa/setup", s.handleSetup2FA)
				r.Post("/2fa/confirm", s.handleConfirm2FA)
				r.Post("/2fa/disable", s.handleDisable2FA)
			})
		})

		// Granted control surfaces
		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/views", s.handleListViews)
			r.Route("/views/{slug}", func(r chi.Router) {
				r.Get("/", s.handleOpenView)
				r.Post("/control", s.handleControlView)
			})
		})

		// Site management, forwarded to the backend under the session
		// identity. Admin-only.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Use(s.adminMiddleware)

			r.Get("/accounts", s.handleListAccounts)
			r.Post("/accounts/{userID}/approve", s.handleApproveAccount)
			r.Post("/accounts/{userID}/revoke", s.handleRevokeAccount)

			r.Get("/roles", s.handleListRoles)
			r.Post("/roles", s.handleCreateRole)
			r.Post("/roles/{roleID}/members/{userID}", s.handleAssignRole)
			r.Delete("/roles/{roleID}/members/{userID}", s.handleUnassignRole)
			r.Get("/roles/{roleID}/grants", s.handleListRoleGrants)
			r.Post("/roles/{roleID}/grants", s.handleCreateGrant)
			r.Delete("/roles/{roleID}/grants/{grantID}", s.handleDeleteGrant)
			r.Get("/roles/{roleID}/hosts/{hostID}/catalog", s.handleRoleHostCatalog)

			r.Get("/hosts", s.handleListHosts)

			r.Get("/views", s.handleAdminListViews)
			r.Post("/views", s.handleCreateView)
			r.Post("/views/{viewID}/widgets", s.handleAddWidget)
			r.Delete("/views/{viewID}/widgets/{widgetID}", s.handleDeleteWidget)

			r.Get("/access-log", s.handleAccessTrail)
		})

		// WebSocket: authenticated by single-use ticket, issued above
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
