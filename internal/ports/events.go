package ports

import "context"

// Event is a quote change notification. Its type doubles as the routing key.
type Event interface {
	EventType() string
	Payload() any
}

// EventPublisher delivers events to subscribers outside the service.
// A broker outage surfaces as domain.ErrUnavailable.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
