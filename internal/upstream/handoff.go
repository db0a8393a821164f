package upstream

import "net/url"

// Hand-off query parameter names used by the external identity provider
// callback. Both are one-shot: consumed once and stripped from the address
// immediately so a reload or a shared link cannot replay them.
const (
	handoffTokenParam   = "google_token"
	handoffPendingParam = "google"
	handoffPendingValue = "pending"
)

// Handoff is the outcome of an external-identity-provider redirect: either
// a ready-to-use access token or a pending-approval marker.
type Handoff struct {
	Token   string
	Pending bool
}

// ParseHandoff inspects a callback URL for hand-off parameters.
// The second return is false when the URL carries no hand-off at all.
func ParseHandoff(u *url.URL) (Handoff, bool) {
	q := u.Query()

	if token := q.Get(handoffTokenParam); token != "" {
		return Handoff{Token: token}, true
	}
	if q.Get(handoffPendingParam) == handoffPendingValue {
		return Handoff{Pending: true}, true
	}
	return Handoff{}, false
}

// StripHandoff returns a copy of the URL with the hand-off parameters
// removed, suitable for immediately replacing the visible address.
func StripHandoff(u *url.URL) *url.URL {
	clean := *u
	q := clean.Query()
	q.Del(handoffTokenParam)
	q.Del(handoffPendingParam)
	clean.RawQuery = q.Encode()
	return &clean
}
