package session

import "testing"

func TestAuthorize(t *testing.T) {
	anon := (*User)(nil)
	regular := &User{ID: "u1", TOTPEnabled: true}
	withViews := &User{ID: "u2", TOTPEnabled: true, Views: []ViewRef{{Slug: "kitchen"}, {Slug: "garage"}}}
	admin := &User{ID: "u3", IsAdmin: true, TOTPEnabled: true}
	adminWithViews := &User{ID: "u4", IsAdmin: true, TOTPEnabled: true, Views: []ViewRef{{Slug: "kitchen"}}}
	mustEnroll := &User{ID: "u5", TOTPRequired: true, TOTPEnabled: false}

	tests := []struct {
		name  string
		user  *User
		class RouteClass
		path  string
		want  Verdict
	}{
		{"anonymous on public", anon, RoutePublic, LoginPath, Verdict{Allow: true}},
		{"anonymous on private", anon, RoutePrivate, DashboardPath, Verdict{RedirectTo: LoginPath}},
		{"anonymous on admin", anon, RouteAdmin, "/admin/users", Verdict{RedirectTo: LoginPath}},

		{"authenticated on public goes to dashboard", regular, RoutePublic, LoginPath, Verdict{RedirectTo: DashboardPath}},
		{"authenticated with views goes to first view", withViews, RoutePublic, LoginPath, Verdict{RedirectTo: "/view/kitchen"}},
		{"admin on public goes to dashboard even with views", adminWithViews, RoutePublic, LoginPath, Verdict{RedirectTo: DashboardPath}},

		{"authenticated on private", regular, RoutePrivate, DashboardPath, Verdict{Allow: true}},
		{"authenticated on own view", withViews, RoutePrivate, "/view/garage", Verdict{Allow: true}},

		{"non-admin on admin route", regular, RouteAdmin, "/admin/users", Verdict{RedirectTo: DashboardPath}},
		{"admin on admin route", admin, RouteAdmin, "/admin/users", Verdict{Allow: true}},

		{"enrollment forced from dashboard", mustEnroll, RoutePrivate, DashboardPath, Verdict{RedirectTo: EnrollmentPath}},
		{"enrollment forced from view", mustEnroll, RoutePrivate, "/view/kitchen", Verdict{RedirectTo: EnrollmentPath}},
		{"enrollment forced from admin route", mustEnroll, RouteAdmin, "/admin/users", Verdict{RedirectTo: EnrollmentPath}},
		{"enrollment page itself reachable", mustEnroll, RoutePrivate, EnrollmentPath, Verdict{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.user, tt.class, tt.path); got != tt.want {
				t.Errorf("Authorize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEnrollmentGateIsReEvaluated(t *testing.T) {
	u := &User{ID: "u1", TOTPRequired: true, TOTPEnabled: false}
	if got := Authorize(u, RoutePrivate, DashboardPath); got.RedirectTo != EnrollmentPath {
		t.Fatalf("expected enrollment redirect, got %+v", got)
	}

	// The verdict follows the snapshot; once enrollment completes the same
	// route is reachable.
	u.TOTPEnabled = true
	if got := Authorize(u, RoutePrivate, DashboardPath); !got.Allow {
		t.Fatalf("expected allow after enrollment, got %+v", got)
	}
}

func TestLandingPath(t *testing.T) {
	tests := []struct {
		name string
		user *User
		want string
	}{
		{"nil user", nil, LoginPath},
		{"no views", &User{ID: "u"}, DashboardPath},
		{"first view wins", &User{ID: "u", Views: []ViewRef{{Slug: "b"}, {Slug: "a"}}}, "/view/b"},
		{"admin ignores views", &User{ID: "u", IsAdmin: true, Views: []ViewRef{{Slug: "b"}}}, DashboardPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LandingPath(tt.user); got != tt.want {
				t.Errorf("LandingPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
