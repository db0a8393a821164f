package session

// Route classes for authorization decisions. Public routes are the
// anonymous entry surfaces (login, registration); private routes require a
// session; admin routes additionally require the admin hint.
type RouteClass int

const (
	RoutePublic RouteClass = iota
	RoutePrivate
	RouteAdmin
)

// Well-known route targets.
const (
	LoginPath      = "/"
	DashboardPath  = "/dashboard"
	EnrollmentPath = "/profile"
	ViewPathPrefix = "/view/"
)

// Verdict is the outcome of an authorization check: either the navigation
// is allowed, or the caller must redirect to the given target. Computing
// the verdict is side-effect free so a routing layer can evaluate it in
// isolation from rendering.
type Verdict struct {
	Allow      bool
	RedirectTo string
}

func allow() Verdict                 { return Verdict{Allow: true} }
func redirect(target string) Verdict { return Verdict{RedirectTo: target} }

// Authorize decides whether the given user may navigate to a route.
//
// Rules, in order:
//   - An authenticated user on a public route is steered to their landing
//     surface: a non-admin with granted views goes to the first view (the
//     server's ordering, never re-sorted), everyone else to the dashboard.
//   - An anonymous user on a private or admin route goes to the login page.
//   - A user who must enroll in 2FA (required but not enabled) is forced to
//     the enrollment surface from every other private route. The predicate
//     is evaluated here on every call, never cached.
//   - A non-admin on an admin route goes to the dashboard.
//
// The user snapshot carries unverified token hints; this guard shapes
// navigation only, and the backend re-checks authorization on every call.
func Authorize(u *User, class RouteClass, path string) Verdict {
	if class == RoutePublic {
		if u == nil {
			return allow()
		}
		return redirect(LandingPath(u))
	}

	if u == nil {
		return redirect(LoginPath)
	}

	if u.NeedsEnrollment() && path != EnrollmentPath {
		return redirect(EnrollmentPath)
	}

	if class == RouteAdmin && !u.IsAdmin {
		return redirect(DashboardPath)
	}

	return allow()
}

// LandingPath returns where a freshly authenticated user should land:
// the first granted view for non-admins with views, otherwise the
// generic dashboard.
func LandingPath(u *User) string {
	if u == nil {
		return LoginPath
	}
	if !u.IsAdmin && len(u.Views) > 0 {
		return ViewPathPrefix + u.Views[0].Slug
	}
	return DashboardPath
}
