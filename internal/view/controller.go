package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/homematrix/panel-core/internal/upstream"
)

// ErrEntityNotInView rejects a command whose target entity is not bound
// to any widget of the view it was issued through.
var ErrEntityNotInView = errors.New("entity is not part of this view")

// Source is the backend surface the controller needs. *upstream.Client
// satisfies it.
type Source interface {
	ViewStates(ctx context.Context, slug string) (upstream.ViewStates, error)
	ControlView(ctx context.Context, slug string, req upstream.ControlRequest) error
	LogViewAccess(ctx context.Context, slug string) error
}

// Logger is the subset of the logging package the controller uses.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Trail records view opens to local durable storage, mirroring the
// upstream access log so the site keeps a trail of its own.
type Trail interface {
	Record(ctx context.Context, viewSlug, userID string) error
}

// Controller mediates reads and commands for curated views. It records
// one access-log entry per view per process lifetime, on the first
// successful open, and scopes commands to the view's widgets.
type Controller struct {
	source Source
	log    Logger

	mu     sync.Mutex
	logged map[string]bool            // slugs whose first open was recorded
	scope  map[string]map[string]bool // slug -> widget entity ids
	trail  Trail                      // optional local access trail
	userID func() string              // resolves the session user for trail rows
}

func NewController(source Source, log Logger) *Controller {
	return &Controller{
		source: source,
		log:    log,
		logged: make(map[string]bool),
		scope:  make(map[string]map[string]bool),
	}
}

// Open fetches the view definition and current entity states. The first
// successful open of each slug records an access-log entry; the log call
// is best effort and never fails the open.
func (c *Controller) Open(ctx context.Context, slug string) (upstream.ViewStates, error) {
	vs, err := c.source.ViewStates(ctx, slug)
	if err != nil {
		return upstream.ViewStates{}, fmt.Errorf("open view %q: %w", slug, err)
	}
	c.rememberScope(slug, vs.View)

	c.mu.Lock()
	first := !c.logged[slug]
	if first {
		c.logged[slug] = true
	}
	c.mu.Unlock()

	if first {
		if err := c.source.LogViewAccess(ctx, slug); err != nil {
			c.log.Warn("view access log failed", "slug", slug, "error", err)
		}
		c.recordTrail(ctx, slug)
	}
	return vs, nil
}

// SetTrail attaches a local access trail. userID resolves the session
// user at record time; it may return "" when no user is known. Call
// before serving traffic.
func (c *Controller) SetTrail(trail Trail, userID func() string) {
	c.mu.Lock()
	c.trail = trail
	c.userID = userID
	c.mu.Unlock()
}

// recordTrail writes the local trail row for a first open. Best effort,
// like the upstream log call.
func (c *Controller) recordTrail(ctx context.Context, slug string) {
	c.mu.Lock()
	trail, userID := c.trail, c.userID
	c.mu.Unlock()
	if trail == nil {
		return
	}

	who := ""
	if userID != nil {
		who = userID()
	}
	if err := trail.Record(ctx, slug, who); err != nil {
		c.log.Warn("local access trail write failed", "slug", slug, "error", err)
	}
}

// Control issues a service call through the view. The target entity must
// belong to the view's widget scope; the view is fetched first if this
// controller has not seen it yet. The backend re-validates scope as well,
// this check just fails obviously-bad commands without a round trip.
func (c *Controller) Control(ctx context.Context, slug string, req upstream.ControlRequest) error {
	c.mu.Lock()
	entities, known := c.scope[slug]
	c.mu.Unlock()

	if !known {
		vs, err := c.source.ViewStates(ctx, slug)
		if err != nil {
			return fmt.Errorf("resolve view %q scope: %w", slug, err)
		}
		entities = c.rememberScope(slug, vs.View)
	}
	if !entities[req.EntityID] {
		return fmt.Errorf("control %q in view %q: %w", req.EntityID, slug, ErrEntityNotInView)
	}

	c.log.Debug("forwarding control", "slug", slug, "entity", req.EntityID, "service", req.Service)
	return c.source.ControlView(ctx, slug, req)
}

func (c *Controller) rememberScope(slug string, v upstream.View) map[string]bool {
	entities := make(map[string]bool, len(v.Widgets))
	for _, w := range v.Widgets {
		entities[w.EntityID] = true
	}
	c.mu.Lock()
	c.scope[slug] = entities
	c.mu.Unlock()
	return entities
}
