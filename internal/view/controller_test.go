package view

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/homematrix/panel-core/internal/upstream"
)

type fakeSource struct {
	mu          sync.Mutex
	states      map[string]upstream.ViewStates
	statesErr   error
	logErr      error
	logCalls    []string
	controlErr  error
	controls    []upstream.ControlRequest
	statesCalls int
}

func (f *fakeSource) ViewStates(_ context.Context, slug string) (upstream.ViewStates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statesCalls++
	if f.statesErr != nil {
		return upstream.ViewStates{}, f.statesErr
	}
	return f.states[slug], nil
}

func (f *fakeSource) ControlView(_ context.Context, _ string, req upstream.ControlRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, req)
	return f.controlErr
}

func (f *fakeSource) LogViewAccess(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls = append(f.logCalls, slug)
	return f.logErr
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

func kitchenView() upstream.ViewStates {
	return upstream.ViewStates{
		View: upstream.View{
			Slug: "kitchen",
			Widgets: []upstream.Widget{
				{EntityID: "light.kitchen_ceiling"},
				{EntityID: "switch.kettle"},
			},
		},
		States: map[string]upstream.EntityState{
			"light.kitchen_ceiling": {EntityID: "light.kitchen_ceiling", State: "on"},
		},
	}
}

func TestOpenLogsAccessOncePerSlug(t *testing.T) {
	src := &fakeSource{states: map[string]upstream.ViewStates{"kitchen": kitchenView()}}
	ctrl := NewController(src, nopLogger{})

	for i := 0; i < 3; i++ {
		if _, err := ctrl.Open(context.Background(), "kitchen"); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if len(src.logCalls) != 1 {
		t.Fatalf("access logged %d times, want 1", len(src.logCalls))
	}
	if src.logCalls[0] != "kitchen" {
		t.Errorf("logged slug = %q, want kitchen", src.logCalls[0])
	}
}

func TestOpenFailureDoesNotConsumeAccessLog(t *testing.T) {
	src := &fakeSource{statesErr: errors.New("backend down")}
	ctrl := NewController(src, nopLogger{})

	if _, err := ctrl.Open(context.Background(), "kitchen"); err == nil {
		t.Fatal("expected error from failed open")
	}
	if len(src.logCalls) != 0 {
		t.Fatalf("access logged for a failed open")
	}

	src.mu.Lock()
	src.statesErr = nil
	src.states = map[string]upstream.ViewStates{"kitchen": kitchenView()}
	src.mu.Unlock()

	if _, err := ctrl.Open(context.Background(), "kitchen"); err != nil {
		t.Fatalf("Open after recovery: %v", err)
	}
	if len(src.logCalls) != 1 {
		t.Fatalf("access logged %d times after recovery, want 1", len(src.logCalls))
	}
}

func TestOpenSurvivesAccessLogFailure(t *testing.T) {
	src := &fakeSource{
		states: map[string]upstream.ViewStates{"kitchen": kitchenView()},
		logErr: errors.New("log endpoint down"),
	}
	ctrl := NewController(src, nopLogger{})

	vs, err := ctrl.Open(context.Background(), "kitchen")
	if err != nil {
		t.Fatalf("Open should not fail when access logging fails: %v", err)
	}
	if vs.View.Slug != "kitchen" {
		t.Errorf("got view %q", vs.View.Slug)
	}
}

func TestControlScopedToViewWidgets(t *testing.T) {
	src := &fakeSource{states: map[string]upstream.ViewStates{"kitchen": kitchenView()}}
	ctrl := NewController(src, nopLogger{})
	ctx := context.Background()

	if _, err := ctrl.Open(ctx, "kitchen"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	in := upstream.ControlRequest{EntityID: "light.kitchen_ceiling", Domain: "light", Service: "toggle"}
	if err := ctrl.Control(ctx, "kitchen", in); err != nil {
		t.Fatalf("in-scope control rejected: %v", err)
	}

	out := upstream.ControlRequest{EntityID: "lock.front_door", Domain: "lock", Service: "unlock"}
	err := ctrl.Control(ctx, "kitchen", out)
	if !errors.Is(err, ErrEntityNotInView) {
		t.Fatalf("out-of-scope control error = %v, want ErrEntityNotInView", err)
	}
	if len(src.controls) != 1 {
		t.Fatalf("backend saw %d controls, want only the in-scope one", len(src.controls))
	}
}

func TestControlResolvesScopeWhenUnopened(t *testing.T) {
	src := &fakeSource{states: map[string]upstream.ViewStates{"kitchen": kitchenView()}}
	ctrl := NewController(src, nopLogger{})

	req := upstream.ControlRequest{EntityID: "switch.kettle", Domain: "switch", Service: "turn_on"}
	if err := ctrl.Control(context.Background(), "kitchen", req); err != nil {
		t.Fatalf("Control before Open: %v", err)
	}
	if src.statesCalls != 1 {
		t.Errorf("states fetched %d times, want 1 for scope resolution", src.statesCalls)
	}
}

type fakeTrail struct {
	mu      sync.Mutex
	err     error
	records []struct{ slug, user string }
}

func (f *fakeTrail) Record(_ context.Context, slug, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, struct{ slug, user string }{slug, userID})
	return nil
}

func TestOpenRecordsLocalTrailOnce(t *testing.T) {
	src := &fakeSource{states: map[string]upstream.ViewStates{"kitchen": kitchenView()}}
	ctrl := NewController(src, nopLogger{})

	trail := &fakeTrail{}
	ctrl.SetTrail(trail, func() string { return "user-1" })

	for range 3 {
		if _, err := ctrl.Open(context.Background(), "kitchen"); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}

	if len(trail.records) != 1 {
		t.Fatalf("trail has %d records, want 1", len(trail.records))
	}
	if trail.records[0].slug != "kitchen" || trail.records[0].user != "user-1" {
		t.Errorf("trail record = %+v", trail.records[0])
	}
}

func TestOpenSurvivesTrailFailure(t *testing.T) {
	src := &fakeSource{states: map[string]upstream.ViewStates{"kitchen": kitchenView()}}
	ctrl := NewController(src, nopLogger{})
	ctrl.SetTrail(&fakeTrail{err: errors.New("disk full")}, nil)

	if _, err := ctrl.Open(context.Background(), "kitchen"); err != nil {
		t.Fatalf("Open: %v", err)
	}
}
