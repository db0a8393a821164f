package session

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Refresher exchanges the cookie-held refresh credential for a new access
// token. Implemented by the upstream client.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Logger is the logging interface the gate needs. Compatible with
// logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Gate is an http.RoundTripper that makes access-token expiry transparent
// to callers exactly once per request.
//
// For every outgoing request it attaches the current access token as a
// bearer header. When a response comes back 401 Unauthorized, the gate
// refreshes the token once, replaces it in the store, and re-issues the
// original request with the new token. A request that 401s after its own
// retry is returned unchanged — the retry budget belongs to the request,
// not to shared state, so concurrent requests cannot consume each other's
// retry.
//
// Concurrent 401s are collapsed into a single refresh call via
// singleflight; the losers wait for the winner's token. If refresh itself
// fails, the gate clears the token store, fires the session-expired
// callback, and propagates the 401.
type Gate struct {
	store TokenStore
	base  http.RoundTripper
	log   Logger

	refresher Refresher
	group     singleflight.Group

	mu        sync.RWMutex
	onExpired func()
}

// NewGate creates a refresh gate over the given token store.
// base is the underlying transport; nil means http.DefaultTransport.
func NewGate(store TokenStore, base http.RoundTripper, log Logger) *Gate {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Gate{
		store: store,
		base:  base,
		log:   log,
	}
}

// SetRefresher wires the upstream refresh call. Must be set before the
// first authorized request; split from NewGate because the upstream client
// that implements Refresher is itself built on top of the gate.
func (g *Gate) SetRefresher(r Refresher) {
	g.refresher = r
}

// OnSessionExpired registers a callback fired when a refresh attempt fails
// and the session must fall back to the anonymous entry point.
func (g *Gate) OnSessionExpired(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = fn
}

// RoundTrip implements http.RoundTripper.
func (g *Gate) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Requests whose body cannot be replayed are never retried.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	newToken, refreshErr := g.refreshToken(ctx)
	if refreshErr != nil {
		g.log.Warn("token refresh failed, session expired", "error", refreshErr)
		if clearErr := g.store.Clear(ctx); clearErr != nil {
			g.log.Warn("failed to clear token store", "error", clearErr)
		}
		g.notifyExpired()
		return resp, nil
	}

	resp.Body.Close() //nolint:errcheck // response is being discarded for the retry

	g.log.Debug("retrying request with refreshed token",
		"method", req.Method,
		"path", req.URL.Path,
	)

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry.Body = body
	}

	// The retried response is final: a second 401 propagates unchanged.
	return g.send(retry, newToken)
}

// send issues the request with the given bearer token on the base transport.
// The request is cloned so the caller's request is never mutated.
func (g *Gate) send(req *http.Request, token string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return g.base.RoundTrip(r)
}

// refreshToken performs one single-flight refresh and routes the new token
// through the shared store mutation path.
func (g *Gate) refreshToken(ctx context.Context) (string, error) {
	v, err, _ := g.group.Do("refresh", func() (any, error) {
		if g.refresher == nil {
			return "", ErrSessionExpired
		}
		token, err := g.refresher.Refresh(ctx)
		if err != nil {
			return "", err
		}
		if err := g.store.Replace(ctx, token); err != nil {
			return "", err
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Gate) notifyExpired() {
	g.mu.RLock()
	fn := g.onExpired
	g.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
