package core

import (
	"context"
)

// HandlerFunc processes the raw payload of an inbound bus message.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Deps bundles the platform collaborators handed to every module at setup.
// Modules receive them explicitly; there is no process-wide registry.
type Deps struct {
	HAL   HAL
	Store Store
	Bus   Bus
}

// Module is a unit of agent functionality wired into the bus at startup.
type Module interface {
	Name() string

	Setup(ctx context.Context, deps Deps) error

	Routes() map[EventType]HandlerFunc
}
