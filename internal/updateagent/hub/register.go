package hub

import (
	"fmt"

	"github.com/gatewing-io/gatewing/internal/pkg/mqtt/paths"
	"github.com/gatewing-io/gatewing/internal/updateagent/core"
)

// events maps agent event types to their topic segments.
var events = map[core.EventType]string{
	core.EventRegister:      paths.Register,
	core.EventOnline:        paths.Online,
	core.EventUpdateCommand: paths.UpdateCommand,
	core.EventUpdateStatus:  paths.UpdateStatus,
}

// Register binds a handler to the topic derived from the event type. Must be
// called before Start; subscriptions are sent when the hub starts.
func (b *Hub) Register(event core.EventType, handler core.HandlerFunc) error {
	segment, ok := events[event]
	if !ok {
		return fmt.Errorf("unmapped event: %s", event)
	}
	fullTopic := b.topics.Build(segment, b.deviceKey)
	b.routes[fullTopic] = handler
	return nil
}
