package core

type EventType string

const (
	EventRegister      EventType = "agent.register"
	EventOnline        EventType = "agent.online"
	EventUpdateCommand EventType = "update.command"
	EventUpdateStatus  EventType = "update.status"
)
