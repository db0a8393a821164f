package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/homematrix/panel-core/internal/session"
)

// View is an administrator-curated, per-role control surface.
type View struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	RoleID  string   `json:"role_id"`
	HostID  string   `json:"host_id"`
	Order   int      `json:"order"`
	Widgets []Widget `json:"widgets"`
}

// Widget binds a view tile to a device entity.
type Widget struct {
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	Label    string `json:"label"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	BgColor  string `json:"bg_color"`
	Size     string `json:"size"`
	Order    int    `json:"order"`
}

// EntityState is a device entity's current state as reported by the host.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// ViewStates bundles a view definition with the current states of its
// widget entities, keyed by entity id.
type ViewStates struct {
	View   View                   `json:"view"`
	States map[string]EntityState `json:"states"`
}

// ControlRequest invokes a service on an entity within a view's scope.
// The endpoint is keyed by the view, never by a raw host+entity pair, so
// the backend re-validates the view's role/host scope on every call.
type ControlRequest struct {
	EntityID string `json:"entity_id"`
	Domain   string `json:"domain"`
	Service  string `json:"service"`
}

// MyViews fetches the user's granted views in server order.
// The ordering is the administrator's and must be preserved.
func (c *Client) MyViews(ctx context.Context) ([]session.ViewRef, error) {
	var views []session.ViewRef
	err := c.doJSON(ctx, c.authorized, http.MethodGet, "/api/views/my", nil, &views, nil)
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ViewStates fetches a view's definition and current entity states.
func (c *Client) ViewStates(ctx context.Context, slug string) (ViewStates, error) {
	var resp ViewStates
	err := c.doJSON(ctx, c.authorized, http.MethodGet,
		"/api/views/"+url.PathEscape(slug)+"/states", nil, &resp, nil)
	return resp, err
}

// ControlView forwards a control action through the view's scope.
func (c *Client) ControlView(ctx context.Context, slug string, req ControlRequest) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/views/"+url.PathEscape(slug)+"/control", req, nil, nil)
}

// LogViewAccess records an audit event for a view open. Fired once per
// mount, independent of the polling cycle.
func (c *Client) LogViewAccess(ctx context.Context, slug string) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/views/"+url.PathEscape(slug)+"/log-access", struct{}{}, nil, nil)
}

// HostCatalog is a host's full domain/entity inventory, used by the
// permission editor.
type HostCatalog struct {
	Domains  []string `json:"domains"`
	Entities []string `json:"entities"`
}

// FetchHostCatalog retrieves the domain/entity catalog for a host.
func (c *Client) FetchHostCatalog(ctx context.Context, hostID string) (HostCatalog, error) {
	var resp HostCatalog
	err := c.doJSON(ctx, c.authorized, http.MethodGet,
		"/api/hosts/"+url.PathEscape(hostID)+"/domains", nil, &resp, nil)
	return resp, err
}
