package events

// Event identifies a notification topic emitted by the trading core.
type Event string

const (
	// EventStateChanged carries a from/to state transition.
	EventStateChanged Event = "state.changed"

	// EventPositionOpened carries a *domain.Position snapshot.
	EventPositionOpened Event = "position.opened"

	// EventPositionClosed carries a *domain.Position snapshot. Rollbacks are
	// reported here too, tagged by the position's CloseReason.
	EventPositionClosed Event = "position.closed"

	// EventError carries a human-readable error message.
	EventError Event = "error"

	// EventLog carries a free-form log line for UI consumers.
	EventLog Event = "log"

	// EventCooldownStarted and EventCooldownEnded carry no payload of note.
	EventCooldownStarted Event = "cooldown.started"
	EventCooldownEnded   Event = "cooldown.ended"
)
