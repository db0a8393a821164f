package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homematrix/panel-core/internal/access"
	"github.com/homematrix/panel-core/internal/audit"
	"github.com/homematrix/panel-core/internal/upstream"
)

// Admin surface. The gateway forwards management calls to the backend under
// the session identity; the backend enforces the admin requirement again on
// its side, so the middleware check here is a fast local reject, not the
// security boundary.

// adminMiddleware rejects non-admin sessions. It runs after
// sessionMiddleware, so a current user is guaranteed.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.manager.Current().IsAdmin {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleListAccounts returns backend accounts; ?pending=true restricts to
// those awaiting approval.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	accounts, err := s.upstream.ListAccounts(r.Context(), pendingOnly)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// handleApproveAccount activates a pending account.
func (s *Server) handleApproveAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.upstream.ApproveAccount(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// handleRevokeAccount revokes an account's access.
func (s *Server) handleRevokeAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.upstream.RevokeAccount(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleListRoles returns all roles.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.upstream.ListRoles(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// handleCreateRole creates a role.
func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Require2FA  bool   `json:"require_2fa"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	role, err := s.upstream.CreateRole(r.Context(), req.Name, req.Description, req.Require2FA)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

// handleAssignRole adds a user to a role.
func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	userID := chi.URLParam(r, "userID")
	if err := s.upstream.AssignRole(r.Context(), roleID, userID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// handleUnassignRole removes a user from a role.
func (s *Server) handleUnassignRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	userID := chi.URLParam(r, "userID")
	if err := s.upstream.UnassignRole(r.Context(), roleID, userID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unassigned"})
}

// handleListRoleGrants returns a role's permission grants.
func (s *Server) handleListRoleGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := s.upstream.ListRoleGrants(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

// handleCreateGrant attaches a permission grant to a role.
func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var grant access.Grant
	if err := json.NewDecoder(r.Body).Decode(&grant); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if grant.HostID == "" {
		writeBadRequest(w, "host_id is required")
		return
	}

	if err := s.upstream.CreateGrant(r.Context(), chi.URLParam(r, "roleID"), grant); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// handleDeleteGrant removes a permission grant from a role.
func (s *Server) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	grantID := chi.URLParam(r, "grantID")
	if err := s.upstream.DeleteGrant(r.Context(), roleID, grantID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListHosts returns the registered automation hosts.
func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.upstream.ListHosts(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

// handleRoleHostCatalog backs the permission editor: it fetches the host's
// domain/entity catalog and overlays the role's grants, so the editor can
// show which domains a grant change would newly expose. Entities are
// filtered by ?query= and capped; remaining reports how many matches were
// cut off.
func (s *Server) handleRoleHostCatalog(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	hostID := chi.URLParam(r, "hostID")

	grants, err := s.upstream.ListRoleGrants(r.Context(), roleID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	catalog, err := s.upstream.FetchHostCatalog(r.Context(), hostID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	resolver := access.NewResolver(grants)
	allowed, denied := resolver.PartitionDomains(catalog.Domains)
	matches, remaining := access.FilterEntities(catalog.Entities, r.URL.Query().Get("query"))

	type entityEntry struct {
		ID      string `json:"id"`
		Domain  string `json:"domain"`
		Granted bool   `json:"granted"`
	}
	entities := make([]entityEntry, 0, len(matches))
	for _, id := range matches {
		entities = append(entities, entityEntry{
			ID:      id,
			Domain:  access.EntityDomain(id),
			Granted: resolver.AuthorizeEntity(id),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"allowed_domains": allowed,
		"denied_domains":  denied,
		"entities":        entities,
		"remaining":       remaining,
	})
}

// handleAdminListViews returns all curated views with their widgets.
func (s *Server) handleAdminListViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.upstream.ListViews(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"views": views})
}

// handleCreateView creates a curated view for a role on a host.
func (s *Server) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID string `json:"role_id"`
		HostID string `json:"host_id"`
		Title  string `json:"title"`
		Order  int    `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RoleID == "" || req.HostID == "" || req.Title == "" {
		writeBadRequest(w, "role_id, host_id and title are required")
		return
	}

	created, err := s.upstream.CreateView(r.Context(), req.RoleID, req.HostID, req.Title, req.Order)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleAddWidget adds a widget to a view.
func (s *Server) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var widget upstream.Widget
	if err := json.NewDecoder(r.Body).Decode(&widget); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if widget.EntityID == "" {
		writeBadRequest(w, "entity_id is required")
		return
	}

	if err := s.upstream.AddWidget(r.Context(), chi.URLParam(r, "viewID"), widget); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// handleDeleteWidget removes a widget from a view.
func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")
	widgetID := chi.URLParam(r, "widgetID")
	if err := s.upstream.DeleteWidget(r.Context(), viewID, widgetID); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleAccessTrail lists the local view access trail.
func (s *Server) handleAccessTrail(w http.ResponseWriter, r *http.Request) {
	if s.trail == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "access trail is not configured")
		return
	}

	filter := audit.Filter{
		ViewSlug: r.URL.Query().Get("view"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.trail.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing access trail", "error", err)
		writeInternalError(w, "failed to list access trail")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
