package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/homematrix/panel-core/internal/infrastructure/logging"
)

// Manager owns the current session: the token store contents and the
// published User snapshot. It is the single writer for both; every other
// component reads through Current() or triggers mutation through the
// manager's methods (the refresh gate routes its token writes through the
// shared TokenStore path).
//
// Lifecycle: create → Resume (once, at process start) → login/logout as
// the operator drives it → Dispose is implicit in process shutdown.
type Manager struct {
	store   TokenStore
	backend Backend
	log     *logging.Logger

	mu      sync.RWMutex
	user    *User
	loading bool

	// onEstablished callbacks fire after every successful bootstrap,
	// whichever path drove it (password login, 2FA, silent resume,
	// hand-off, trusted device).
	onEstablished []func()

	loadDone sync.Once
}

// NewManager creates a session manager in the anonymous, loading state.
// Dependent consumers treat loading=true as "verdict not yet known" and
// must not render either the anonymous or the authenticated surface.
func NewManager(store TokenStore, backend Backend, log *logging.Logger) *Manager {
	return &Manager{
		store:   store,
		backend: backend,
		log:     log.With("component", "session"),
		loading: true,
	}
}

// Current returns the published User snapshot, or nil when anonymous.
func (m *Manager) Current() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// OnEstablished registers a callback invoked after every successful
// session bootstrap. The authenticator hooks in here so its state machine
// reaches Authenticated on bootstraps it did not drive itself (silent
// resume, hand-off, trusted device). Register before serving traffic.
func (m *Manager) OnEstablished(fn func()) {
	m.mu.Lock()
	m.onEstablished = append(m.onEstablished, fn)
	m.mu.Unlock()
}

// Loading reports whether the initial resume is still in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// finishLoading flips loading to false exactly once, regardless of which
// code path completes first, so dependent consumers never block forever.
func (m *Manager) finishLoading() {
	m.loadDone.Do(func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	})
}

// Resume attempts a silent session resume at process start: one refresh
// call against the cookie-held credential, then the full bootstrap. On any
// failure the session is left anonymous with an empty token store. Loading
// ends exactly once on every path.
func (m *Manager) Resume(ctx context.Context) error {
	defer m.finishLoading()

	token, err := m.backend.Refresh(ctx)
	if err != nil {
		m.log.Info("silent resume failed, starting anonymous", "error", err)
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.log.Error("failed to clear token store", "error", clearErr)
		}
		return nil
	}

	if err := m.LoginWithToken(ctx, token); err != nil {
		m.log.Warn("resume bootstrap failed", "error", err)
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.log.Error("failed to clear token store", "error", clearErr)
		}
		return err
	}

	m.log.Info("session resumed", "user_id", m.Current().ID)
	return nil
}

// LoginWithToken is the shared bootstrap used by password login, 2FA
// verification, and the identity-provider hand-off.
//
// Sequence: persist the token, decode the identity hints, then fetch the
// 2FA status and the granted views concurrently (both depend on the token,
// not on each other), and publish the User snapshot only after both
// complete. The enrichment fetches are best-effort: 2FA status degrades to
// {enabled:true, required:false} — a fail-safe that never forces an
// unwanted enrollment prompt — and views degrade to empty.
func (m *Manager) LoginWithToken(ctx context.Context, token string) error {
	defer m.finishLoading()

	if err := m.store.Replace(ctx, token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	identity, err := DecodeIdentity(token)
	if err != nil {
		return err
	}

	status, views := m.fetchFacts(ctx)

	user := &User{
		ID:           identity.SubjectID,
		IsAdmin:      identity.IsAdmin,
		TOTPRequired: status.Required,
		TOTPEnabled:  status.Enabled,
		Views:        views,
	}

	m.mu.Lock()
	m.user = user
	established := make([]func(), len(m.onEstablished))
	copy(established, m.onEstablished)
	m.mu.Unlock()

	for _, fn := range established {
		fn()
	}

	m.log.Info("session established",
		"user_id", user.ID,
		"is_admin", user.IsAdmin,
		"views", len(user.Views),
	)
	return nil
}

// fetchFacts runs the two enrichment fetches concurrently and joins them.
func (m *Manager) fetchFacts(ctx context.Context) (TOTPStatus, []ViewRef) {
	// Fail-safe default: treating 2FA as already enabled avoids bouncing
	// the user into enrollment on a transient fetch failure.
	status := TOTPStatus{Enabled: true, Required: false}
	views := []ViewRef{}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s, err := m.backend.TOTPStatus(ctx)
		if err != nil {
			m.log.Warn("2fa status fetch failed, using fail-safe default", "error", err)
			return
		}
		status = s
	}()

	go func() {
		defer wg.Done()
		v, err := m.backend.MyViews(ctx)
		if err != nil {
			m.log.Warn("views fetch failed, defaulting to none", "error", err)
			return
		}
		if v != nil {
			views = v
		}
	}()

	wg.Wait()
	return status, views
}

// ReloadFacts re-fetches the server-derived facts for the current user and
// republishes the snapshot. Used after enrollment changes 2FA state.
func (m *Manager) ReloadFacts(ctx context.Context) error {
	m.mu.RLock()
	current := m.user
	m.mu.RUnlock()
	if current == nil {
		return ErrNotAuthenticated
	}

	status, views := m.fetchFacts(ctx)

	user := &User{
		ID:           current.ID,
		IsAdmin:      current.IsAdmin,
		TOTPRequired: status.Required,
		TOTPEnabled:  status.Enabled,
		Views:        views,
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	return nil
}

// Logout invalidates the refresh credential server-side and clears all
// local session state. Local clearing is authoritative and proceeds even
// when the server call fails; a token store that cannot be cleared is a
// programming error and is returned as such.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.backend.Logout(ctx); err != nil {
		m.log.Warn("server logout failed, clearing local state anyway", "error", err)
	}

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing token store on logout: %w", err)
	}

	m.log.Info("session cleared")
	return nil
}

// Invalidate drops the session snapshot without a server call. Wired to the
// refresh gate's session-expired callback, whose failing refresh has
// already cleared the token store.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()
	m.log.Info("session invalidated after failed refresh")
}
