package bus

import "time"

// EventBus is an in-process pub/sub bus used to tell collaborators that the
// simulation state changed underneath them (a capture finished, a restore
// rewrote the world).
//
// Delivery is synchronous, in the publisher's goroutine, and handlers of one
// event type run in subscription order. The savestate engine relies on that
// order being stable so that restore notifications are deterministic.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	// Handler errors are joined and returned.
	Publish(event Event) error
	// PublishBatch publishes events in order and joins every handler error.
	PublishBatch(events ...Event) error
	// Subscribe registers a handler for an event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error
	// GetMetrics returns a copy of the delivery counters.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusMetrics holds delivery counters.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
