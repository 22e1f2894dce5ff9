// Package broker establishes AMQP sessions and provisions the queues jobs are
// published to.
//
// A Session owns one connection and one channel over it. It is created once
// per invocation with Connect and must be released with Close on every exit
// path, including error paths, so the broker does not keep the session slot.
//
// EnsureQueue declares a queue from a QueueDescriptor. The declare is safe to
// repeat: an absent queue is created, an identical existing queue is left
// untouched, and an existing queue with different durability or arguments is
// rejected by the broker with ErrPreconditionFailed. Callers must treat that
// as fatal; redeclaring would desynchronize consumers relying on the existing
// consumer timeout.
package broker
