package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/homematrix/panel-core/internal/access"
)

func TestCreateRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/roles", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Guests" || body["require_2fa"] != true {
			t.Errorf("request body = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": "r-9", "name": "Guests", "require_2fa": true,
		})
	})
	client, store := newTestClient(t, mux)
	store.Replace(context.Background(), "tok")

	role, err := client.CreateRole(context.Background(), "Guests", "visitor access", true)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.ID != "r-9" || !role.Require2FA {
		t.Errorf("role = %+v", role)
	}
}

func TestGrantRoundTrip(t *testing.T) {
	// A nil entity axis means unrestricted and must survive the wire
	// unchanged; an empty slice would mean "no entities".
	var posted access.Grant
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/roles/{roleID}/permissions", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&posted)
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/admin/roles/{roleID}/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "g-1", "host_id": "h-1", "domains": []string{"light"}, "entities": nil},
		})
	})
	client, store := newTestClient(t, mux)
	ctx := context.Background()
	store.Replace(ctx, "tok")

	err := client.CreateGrant(ctx, "r-1", access.Grant{HostID: "h-1", Domains: []string{"light"}})
	if err != nil {
		t.Fatalf("CreateGrant: %v", err)
	}
	if posted.HostID != "h-1" || posted.Entities != nil {
		t.Errorf("posted grant = %+v", posted)
	}

	grants, err := client.ListRoleGrants(ctx, "r-1")
	if err != nil {
		t.Fatalf("ListRoleGrants: %v", err)
	}
	if len(grants) != 1 || grants[0].Domains == nil || grants[0].Entities != nil {
		t.Errorf("grants = %+v", grants)
	}
}

func TestDeleteWidgetEscapesPath(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/admin/views/{viewID}/widgets/{widgetID}", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	client, store := newTestClient(t, mux)
	store.Replace(context.Background(), "tok")

	if err := client.DeleteWidget(context.Background(), "v 1", "w/1"); err != nil {
		t.Fatalf("DeleteWidget: %v", err)
	}
	if gotPath != "/api/admin/views/v%201/widgets/w%2F1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestFetchHostCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/hosts/{hostID}/domains", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("hostID") != "h-1" {
			t.Errorf("hostID = %q", r.PathValue("hostID"))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"domains":  []string{"light", "lock"},
			"entities": []string{"light.kitchen", "lock.front_door"},
		})
	})
	client, store := newTestClient(t, mux)
	store.Replace(context.Background(), "tok")

	catalog, err := client.FetchHostCatalog(context.Background(), "h-1")
	if err != nil {
		t.Fatalf("FetchHostCatalog: %v", err)
	}
	if len(catalog.Domains) != 2 || len(catalog.Entities) != 2 {
		t.Errorf("catalog = %+v", catalog)
	}
}
