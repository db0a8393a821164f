package mirror

import (
	"fmt"
	"strings"
)

// topicPrefix roots every mirror topic. Keeping it in one place means the
// broker ACLs only ever need to reason about panelcore/#.
const topicPrefix = "panelcore"

// Topics builds mirror topic strings. It carries no state; the zero value
// is ready to use:
//
//	topic := mirror.Topics{}.EntityState("light.kitchen_ceiling")
type Topics struct{}

// SystemStatus is the retained online/offline status topic, also used as
// the Last Will and Testament target.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// EntityState is the retained state topic for a single entity.
//
//	panelcore/state/light.kitchen_ceiling
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", topicPrefix, entityID)
}

// AllEntityStates is the wildcard pattern matching every entity state topic.
func (Topics) AllEntityStates() string {
	return topicPrefix + "/state/+"
}

// ViewCommand is the command topic for a single view.
//
//	panelcore/command/kitchen
func (Topics) ViewCommand(slug string) string {
	return fmt.Sprintf("%s/command/%s", topicPrefix, slug)
}

// AllViewCommands is the wildcard pattern matching every view command topic.
func (Topics) AllViewCommands() string {
	return topicPrefix + "/command/+"
}

// slugFromCommandTopic extracts the view slug from a command topic, or ""
// if the topic is not a single-level command topic.
func slugFromCommandTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, topicPrefix+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
