package interfaces

// EventType represents the kinds of session events streamed to clients
type EventType string

const (
	EventState        EventType = "state"
	EventNotification EventType = "notification"
	EventContent      EventType = "content"
	EventClosed       EventType = "closed" // last event of a session; payload is the session id
)

// Event is a message published on a session's event bus
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventHandler receives published events. Handlers run on the publishing
// goroutine and must not block.
type EventHandler func(event Event)

// EventService is a pub/sub bus scoped to one editing session
type EventService interface {
	// Subscribe registers handler for every event type and returns its unsubscribe func
	Subscribe(handler EventHandler) (func(), error)

	// Publish delivers event to all subscribers in subscription order
	Publish(event Event)

	// SubscriberCount returns the number of live subscribers
	SubscriberCount() int

	// Close drops all subscribers
	Close() error
}
