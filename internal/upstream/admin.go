package upstream

import (
	"context"
	"net/http"
	"net/url"

	"github.com/homematrix/panel-core/internal/access"
)

// Admin-only endpoints. The backend enforces the admin requirement on every
// call; the client exposes them so an admin panel served by this gateway
// can manage the site without talking to the backend directly.

// Account is a backend user account as seen by administrators.
type Account struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Status        string `json:"status"`
	IsAdmin       bool   `json:"is_admin"`
	RequestReason string `json:"request_reason,omitempty"`
}

// Role groups permissions and views; Require2FA forces step-up
// authentication for every member.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Require2FA  bool   `json:"require_2fa"`
}

// Host is a registered automation host.
type Host struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// ListAccounts returns all accounts; pendingOnly restricts to those
// awaiting approval.
func (c *Client) ListAccounts(ctx context.Context, pendingOnly bool) ([]Account, error) {
	path := "/api/admin/users"
	if pendingOnly {
		path = "/api/admin/users/pending"
	}
	var accounts []Account
	err := c.doJSON(ctx, c.authorized, http.MethodGet, path, nil, &accounts, nil)
	return accounts, err
}

// ApproveAccount activates a pending account.
func (c *Client) ApproveAccount(ctx context.Context, userID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/admin/users/"+url.PathEscape(userID)+"/approve", struct{}{}, nil, nil)
}

// RevokeAccount revokes an account's access.
func (c *Client) RevokeAccount(ctx context.Context, userID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/admin/users/"+url.PathEscape(userID)+"/revoke", struct{}{}, nil, nil)
}

// ListRoles returns all roles.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := c.doJSON(ctx, c.authorized, http.MethodGet, "/api/admin/roles", nil, &roles, nil)
	return roles, err
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, name, description string, require2FA bool) (Role, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"require_2fa": require2FA,
	}
	var role Role
	err := c.doJSON(ctx, c.authorized, http.MethodPost, "/api/admin/roles", body, &role, nil)
	return role, err
}

// AssignRole adds a user to a role.
func (c *Client) AssignRole(ctx context.Context, roleID, userID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/admin/roles/"+url.PathEscape(roleID)+"/assign/"+url.PathEscape(userID), struct{}{}, nil, nil)
}

// UnassignRole removes a user from a role.
func (c *Client) UnassignRole(ctx context.Context, roleID, userID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodDelete,
		"/api/admin/roles/"+url.PathEscape(roleID)+"/assign/"+url.PathEscape(userID), nil, nil, nil)
}

// ListRoleGrants returns a role's permission grants across all hosts.
func (c *Client) ListRoleGrants(ctx context.Context, roleID string) ([]access.Grant, error) {
	var grants []access.Grant
	err := c.doJSON(ctx, c.authorized, http.MethodGet,
		"/api/admin/roles/"+url.PathEscape(roleID)+"/permissions", nil, &grants, nil)
	return grants, err
}

// CreateGrant attaches a permission grant to a role. Nil domain or entity
// lists mean unrestricted along that axis.
func (c *Client) CreateGrant(ctx context.Context, roleID string, grant access.Grant) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/admin/roles/"+url.PathEscape(roleID)+"/permissions", grant, nil, nil)
}

// DeleteGrant removes a permission grant from a role.
func (c *Client) DeleteGrant(ctx context.Context, roleID, grantID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodDelete,
		"/api/admin/roles/"+url.PathEscape(roleID)+"/permissions/"+url.PathEscape(grantID), nil, nil, nil)
}

// ListHosts returns the registered automation hosts.
func (c *Client) ListHosts(ctx context.Context) ([]Host, error) {
	var hosts []Host
	err := c.doJSON(ctx, c.authorized, http.MethodGet, "/api/admin/hosts", nil, &hosts, nil)
	return hosts, err
}

// ListViews returns all curated views with their widgets.
func (c *Client) ListViews(ctx context.Context) ([]View, error) {
	var views []View
	err := c.doJSON(ctx, c.authorized, http.MethodGet, "/api/admin/views", nil, &views, nil)
	return views, err
}

// CreateView creates a curated view for a role on a host.
func (c *Client) CreateView(ctx context.Context, roleID, hostID, title string, order int) (View, error) {
	body := map[string]any{
		"role_id": roleID,
		"host_id": hostID,
		"title":   title,
		"order":   order,
	}
	var view View
	err := c.doJSON(ctx, c.authorized, http.MethodPost, "/api/admin/views", body, &view, nil)
	return view, err
}

// AddWidget adds a widget to a view.
func (c *Client) AddWidget(ctx context.Context, viewID string, widget Widget) error {
	return c.doJSON(ctx, c.authorized, http.MethodPost,
		"/api/admin/views/"+url.PathEscape(viewID)+"/widgets", widget, nil, nil)
}

// DeleteWidget removes a widget from a view.
func (c *Client) DeleteWidget(ctx context.Context, viewID, widgetID string) error {
	return c.doJSON(ctx, c.authorized, http.MethodDelete,
		"/api/admin/views/"+url.PathEscape(viewID)+"/widgets/"+url.PathEscape(widgetID), nil, nil, nil)
}
