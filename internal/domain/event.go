package domain

const (
	EventNameSessionCreated   = "session.created"
	EventNameSessionJoined    = "session.joined"
	EventNameSessionFlipping  = "session.flipping"
	EventNameSessionCompleted = "session.completed"
	EventNameSessionCancelled = "session.cancelled"
)

// SessionEventNames lists every session lifecycle event.
var SessionEventNames = []string{
	EventNameSessionCreated,
	EventNameSessionJoined,
	EventNameSessionFlipping,
	EventNameSessionCompleted,
	EventNameSessionCancelled,
}

// SessionEvent is implemented by every session lifecycle event.
type SessionEvent interface {
	Name() string
	Snapshot() Session
}

type EventSessionCreated struct {
	Session Session
}

func (EventSessionCreated) Name() string { return EventNameSessionCreated }
func (e EventSessionCreated) Snapshot() Session { return e.Session }

type EventSessionJoined struct {
	Session Session
}

func (EventSessionJoined) Name() string { return EventNameSessionJoined }
func (e EventSessionJoined) Snapshot() Session { return e.Session }

type EventSessionFlipping struct {
	Session Session
}

func (EventSessionFlipping) Name() string { return EventNameSessionFlipping }
func (e EventSessionFlipping) Snapshot() Session { return e.Session }

// EventSessionCompleted is published once by the participant that committed the result.
type EventSessionCompleted struct {
	Session Session
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }
func (e EventSessionCompleted) Snapshot() Session { return e.Session }

type EventSessionCancelled struct {
	Session Session
}

func (EventSessionCancelled) Name() string { return EventNameSessionCancelled }
func (e EventSessionCancelled) Snapshot() Session { return e.Session }
