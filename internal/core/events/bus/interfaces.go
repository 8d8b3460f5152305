package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus for engine lifecycle events.
//
// Delivery is synchronous: Publish calls handlers in the caller goroutine, so
// handlers should be quick. Handler errors are joined and returned.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for an event type. The wildcard type "*"
	// receives every event.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error
	// PublishBatch publishes events sequentially and aggregates errors.
	PublishBatch(events ...Event) error
	// Subscribers returns the number of active subscriptions for eventType.
	Subscribers(eventType string) int
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// Wildcard subscribes to every event type.
const Wildcard = "*"
