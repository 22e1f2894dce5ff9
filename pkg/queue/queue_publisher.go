package queue

import "context"

// Msg represents a queue message.
//
// Exchange is the exchange to publish to; the empty string is the default
// exchange, which routes directly to the queue named by RoutingKey.
// Body is sent unmodified.
// Persistent marks the message to survive a broker restart when it sits in a
// durable queue.
type Msg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Persistent bool
}

type QueuePublisher interface {
	// Publish publishes a message to the underlying queue.
	//
	// Implementations block until delivery is confirmed by the broker or the
	// context is canceled.
	Publish(ctx context.Context, message Msg) error

	// Close stops the publisher.
	//
	// Close MUST be called once the publisher is no longer needed. Publishing
	// after Close fails.
	Close(ctx context.Context)
}
