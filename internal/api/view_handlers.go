package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homematrix/panel-core/internal/upstream"
)

// handleListViews returns the granted views in server order.
func (s *Server) handleListViews(w http.ResponseWriter, _ *http.Request) {
	user := s.manager.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"views": user.Views,
	})
}

// handleOpenView fetches the view definition and current entity states,
// recording first-open access. Opening also starts the state watcher so
// the snapshot a panel renders is immediately followed by pushes.
func (s *Server) handleOpenView(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	vs, err := s.views.Open(r.Context(), slug)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	s.ensureWatcher(slug)

	writeJSON(w, http.StatusOK, vs)
}

// handleControlView issues a service call on an entity within the view's
// scope.
func (s *Server) handleControlView(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req upstream.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.EntityID == "" || req.Service == "" {
		writeBadRequest(w, "entity_id and service are required")
		return
	}

	if err := s.views.Control(r.Context(), slug, req); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
