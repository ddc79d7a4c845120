// Package pubsub is the in-process message bus that carries widget view
// changes to the transports that display them.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "widget.view.<conn-id>").
	Topic string
	// UserID is the identity key of the user the message concerns, if any.
	UserID string
	// Payload contains the raw message data, usually JSON.
	Payload []byte
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic and returns once the
	// subscription is active. Messages are handled on a background goroutine
	// until ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is both ends of the message bus.
type Bus interface {
	Publisher
	Subscriber
}
