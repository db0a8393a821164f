package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homematrix/panel-core/internal/infrastructure/logging"
	"github.com/homematrix/panel-core/internal/upstream"
)

// commandTimeout bounds a single forwarded control call.
const commandTimeout = 10 * time.Second

// Commander forwards a control request within a view's scope.
// *view.Controller satisfies it.
type Commander interface {
	Control(ctx context.Context, slug string, req upstream.ControlRequest) error
}

// commandBridge decodes broker command messages and forwards them through
// the view-scoped control path. Entities outside the view's widgets are
// rejected there, so a chatty broker client cannot widen its reach.
type commandBridge struct {
	ctrl Commander
	log  *logging.Logger
}

// handle processes one message from a panelcore/command/<slug> topic.
func (b *commandBridge) handle(topic string, payload []byte) error {
	slug := slugFromCommandTopic(topic)
	if slug == "" {
		return fmt.Errorf("command topic %q has no view slug", topic)
	}

	var req upstream.ControlRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode command for view %q: %w", slug, err)
	}
	if req.EntityID == "" || req.Service == "" {
		return fmt.Errorf("command for view %q missing entity_id or service", slug)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.ctrl.Control(ctx, slug, req); err != nil {
		return fmt.Errorf("forward command for view %q: %w", slug, err)
	}

	b.log.Debug("mirror command forwarded",
		"view", slug,
		"entity_id", req.EntityID,
		"service", req.Service,
	)
	return nil
}

// BindCommands subscribes to the view command topics and forwards each
// decoded request through ctrl. Call once after Connect.
func (m *Mirror) BindCommands(ctrl Commander) error {
	bridge := &commandBridge{ctrl: ctrl, log: m.log}
	return m.Subscribe(Topics{}.AllViewCommands(), byte(m.cfg.QoS), bridge.handle)
}
