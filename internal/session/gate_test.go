package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	token string
	err   error
	delay time.Duration
}

func (f *fakeRefresher) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.token, f.err
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func respond(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

func bearerOf(req *http.Request) string {
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
}

// tokenSwitch is a base transport that answers by bearer token: the fresh
// token gets 200, everything else 401.
func tokenSwitch(fresh string, seen *[]string, mu *sync.Mutex) roundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		token := bearerOf(req)
		if mu != nil {
			mu.Lock()
			*seen = append(*seen, token)
			mu.Unlock()
		}
		if token == fresh {
			return respond(http.StatusOK), nil
		}
		return respond(http.StatusUnauthorized), nil
	}
}

func newTestGate(t *testing.T, base http.RoundTripper, refresher Refresher) (*Gate, TokenStore) {
	t.Helper()
	store := NewMemoryStore()
	gate := NewGate(store, base, testLogger())
	if refresher != nil {
		gate.SetRefresher(refresher)
	}
	return gate, store
}

func TestGateAttachesBearerToken(t *testing.T) {
	var got string
	gate, store := newTestGate(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header.Get("Authorization")
		return respond(http.StatusOK), nil
	}), nil)
	store.Replace(context.Background(), "tok-1")

	req, _ := http.NewRequest(http.MethodGet, "http://backend/api/views/mine", nil)
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", got)
	}
}

func TestGateRefreshesOnceAndRetries(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	refresher := &fakeRefresher{token: "fresh"}
	gate, store := newTestGate(t, tokenSwitch("fresh", &seen, &mu), refresher)
	store.Replace(context.Background(), "stale")

	req, _ := http.NewRequest(http.MethodGet, "http://backend/api/auth/2fa/status", nil)
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after transparent refresh", resp.StatusCode)
	}
	if refresher.callCount() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.callCount())
	}
	if want := []string{"stale", "fresh"}; len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("bearer sequence = %v, want %v", seen, want)
	}

	// The refreshed token went through the shared store path.
	if token, _ := store.Load(context.Background()); token != "fresh" {
		t.Errorf("store token = %q, want fresh", token)
	}
}

func TestGateRetryBudgetIsPerRequest(t *testing.T) {
	// The backend keeps answering 401 even for the refreshed token. The
	// gate must refresh once, retry once, and hand the second 401 back
	// rather than loop.
	always401 := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized), nil
	})
	refresher := &fakeRefresher{token: "fresh"}
	gate, store := newTestGate(t, always401, refresher)
	store.Replace(context.Background(), "stale")

	req, _ := http.NewRequest(http.MethodGet, "http://backend/api/views/mine", nil)
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want the second 401 to propagate", resp.StatusCode)
	}
	if refresher.callCount() != 1 {
		t.Errorf("refresh called %d times, want exactly 1", refresher.callCount())
	}
}

func TestGateRefreshFailureExpiresSession(t *testing.T) {
	always401 := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized), nil
	})
	refresher := &fakeRefresher{err: errors.New("refresh credential rejected")}
	gate, store := newTestGate(t, always401, refresher)
	store.Replace(context.Background(), "stale")

	var expired atomic.Bool
	gate.OnSessionExpired(func() { expired.Store(true) })

	req, _ := http.NewRequest(http.MethodGet, "http://backend/api/views/mine", nil)
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want the original 401", resp.StatusCode)
	}
	if !expired.Load() {
		t.Error("session-expired callback not fired")
	}
	if token, _ := store.Load(context.Background()); token != "" {
		t.Errorf("store token = %q, want cleared", token)
	}
}

func TestGateReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if bearerOf(req) == "fresh" {
			return respond(http.StatusOK), nil
		}
		return respond(http.StatusUnauthorized), nil
	})
	gate, store := newTestGate(t, base, &fakeRefresher{token: "fresh"})
	store.Replace(context.Background(), "stale")

	req, _ := http.NewRequest(http.MethodPost, "http://backend/api/views/kitchen/control",
		bytes.NewReader([]byte(`{"entity_id":"light.a"}`)))
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] {
		t.Fatalf("bodies = %q, want identical payload on both attempts", bodies)
	}
}

func TestGateSkipsRetryForUnreplayableBody(t *testing.T) {
	refresher := &fakeRefresher{token: "fresh"}
	gate, store := newTestGate(t, roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized), nil
	}), refresher)
	store.Replace(context.Background(), "stale")

	req, _ := http.NewRequest(http.MethodPost, "http://backend/api/upload", io.NopCloser(strings.NewReader("stream")))
	req.GetBody = nil

	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without retry", resp.StatusCode)
	}
	if refresher.callCount() != 0 {
		t.Errorf("refresh called %d times for an unreplayable body, want 0", refresher.callCount())
	}
}

func TestGateCollapsesConcurrentRefreshes(t *testing.T) {
	refresher := &fakeRefresher{token: "fresh", delay: 100 * time.Millisecond}
	gate, store := newTestGate(t, tokenSwitch("fresh", nil, nil), refresher)
	store.Replace(context.Background(), "stale")

	const n = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req, _ := http.NewRequest(http.MethodGet, "http://backend/api/views/mine", nil)
			resp, err := gate.RoundTrip(req)
			if err != nil {
				t.Errorf("RoundTrip: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := refresher.callCount(); got != 1 {
		t.Errorf("refresh called %d times for %d concurrent 401s, want 1", got, n)
	}
}

func TestGateWithoutRefresherPropagates401(t *testing.T) {
	gate, store := newTestGate(t, roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusUnauthorized), nil
	}), nil)
	store.Replace(context.Background(), "stale")

	req, _ := http.NewRequest(http.MethodGet, "http://backend/api/views/mine", nil)
	resp, err := gate.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
