package core

import (
	"context"
)

// Sender publishes agent events to the message bus.
type Sender interface {
	Send(ctx context.Context, event EventType, payload []byte) error
	SendJSON(ctx context.Context, event EventType, v any) error
}

// Bus is the agent's view of the message bus: publishing, the status topic,
// and the ability to stop the client before a reboot.
type Bus interface {
	Sender

	// PublishStatus publishes a human-readable status text on the update
	// status topic, keyed by this device's hardware identifier.
	PublishStatus(ctx context.Context, text string) error

	// Stop disconnects the bus client. Called by the update listener before
	// the reboot timer is armed.
	Stop()
}
