package mirror

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/homematrix/panel-core/internal/infrastructure/logging"
	"github.com/homematrix/panel-core/internal/upstream"
	"github.com/homematrix/panel-core/internal/view"
)

// publisher is the slice of Mirror the state sink needs. Narrowed for tests.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// stateSink republishes entity states from view snapshots as retained
// messages. It remembers the last payload per entity so a poll cycle that
// changed nothing publishes nothing.
type stateSink struct {
	pub publisher
	qos byte
	log *logging.Logger

	mu   sync.Mutex
	last map[string][]byte
}

func newStateSink(pub publisher, qos byte, log *logging.Logger) *stateSink {
	return &stateSink{
		pub:  pub,
		qos:  qos,
		log:  log,
		last: make(map[string][]byte),
	}
}

// deliver publishes every changed entity state in the snapshot. Publish
// failures are logged and skipped; the retained topic self-heals on the
// next change.
func (s *stateSink) deliver(vs upstream.ViewStates) {
	for entityID, state := range vs.States {
		payload, err := json.Marshal(state)
		if err != nil {
			s.log.Warn("mirror state encode failed", "entity_id", entityID, "error", err)
			continue
		}

		s.mu.Lock()
		unchanged := bytes.Equal(s.last[entityID], payload)
		if !unchanged {
			s.last[entityID] = payload
		}
		s.mu.Unlock()
		if unchanged {
			continue
		}

		topic := Topics{}.EntityState(entityID)
		if err := s.pub.Publish(topic, payload, s.qos, true); err != nil {
			s.log.Warn("mirror state publish failed", "topic", topic, "error", err)
		}
	}
}

// StateSink returns a sink that mirrors view snapshots to the broker.
// Wire it into the watcher fan-out alongside any other sinks.
func (m *Mirror) StateSink() view.Sink {
	sink := newStateSink(m, byte(m.cfg.QoS), m.log)
	return sink.deliver
}
