// Package queue provides abstractions and implementations for publishing
// messages to durable queues.
//
// The package defines a common publisher interface with explicit lifecycle
// management. AMQPPublisher implements it over an AMQP channel in publisher
// confirm mode: Publish returns only once the broker has confirmed the
// message, so a nil error means the broker accepted responsibility for it.
//
// Publishers never retry. A failed or unconfirmed publish must be treated by
// the caller as "not queued"; whether to resubmit is the caller's decision.
package queue
