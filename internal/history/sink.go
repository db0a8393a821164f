package history

import (
	"strconv"
	"sync"
	"time"

	"github.com/homematrix/panel-core/internal/access"
	"github.com/homematrix/panel-core/internal/upstream"
	"github.com/homematrix/panel-core/internal/view"
)

// stateMeasurement is the InfluxDB measurement holding entity transitions.
const stateMeasurement = "entity_state"

// pointWriter is the slice of Recorder the transition tracker needs.
// Narrowed for tests.
type pointWriter interface {
	writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// transitions watches snapshots for state changes and writes a point per
// transition. The first observation of an entity is also recorded so a
// fresh bucket starts with the current state rather than the next change.
type transitions struct {
	w pointWriter

	mu   sync.Mutex
	last map[string]string
}

func newTransitions(w pointWriter) *transitions {
	return &transitions{w: w, last: make(map[string]string)}
}

func (t *transitions) deliver(vs upstream.ViewStates) {
	now := time.Now()

	for entityID, state := range vs.States {
		t.mu.Lock()
		prev, seen := t.last[entityID]
		changed := !seen || prev != state.State
		if changed {
			t.last[entityID] = state.State
		}
		t.mu.Unlock()
		if !changed {
			continue
		}

		tags := map[string]string{
			"entity_id": entityID,
			"domain":    access.EntityDomain(entityID),
			"view":      vs.View.Slug,
		}
		fields := map[string]any{
			"state": state.State,
		}
		if v, err := strconv.ParseFloat(state.State, 64); err == nil {
			fields["value"] = v
		}

		t.w.writePoint(stateMeasurement, tags, fields, now)
	}
}

// Sink returns a sink that records state transitions from view snapshots.
// Wire it into the watcher fan-out alongside any other sinks.
func (r *Recorder) Sink() view.Sink {
	tr := newTransitions(r)
	return tr.deliver
}
