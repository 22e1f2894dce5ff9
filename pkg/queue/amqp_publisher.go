package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/buildit/jobsubmit/pkg/broker"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPublish reports a message the broker rejected or did not confirm.
var ErrPublish = errors.New("publish failed")

// ConfirmChannel is the subset of *amqp.Channel used for confirmed publishing.
type ConfirmChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ QueuePublisher = (*AMQPPublisher)(nil)

// AMQPPublisher is a synchronous QueuePublisher over an AMQP channel.
//
// The channel is owned by the caller; Close does not close it. Publishes are
// serialized so each one waits for its own delivery tag.
type AMQPPublisher struct {
	ch       ConfirmChannel
	log      *zap.SugaredLogger
	confirms chan amqp.Confirmation

	mu      sync.Mutex
	nextTag uint64
	closed  bool
	once    sync.Once
}

// NewAMQPPublisher puts ch into confirm mode and returns a publisher over it.
// A channel that refuses confirm mode is reported as broker.ErrChannel.
func NewAMQPPublisher(ch ConfirmChannel, log *zap.SugaredLogger) (*AMQPPublisher, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("%w: enable confirm mode: %w", broker.ErrChannel, err)
	}

	return &AMQPPublisher{
		ch:       ch,
		log:      log,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		// Delivery tags start at 1 once a channel enters confirm mode.
		nextTag: 1,
	}, nil
}

// Publish sends msg and blocks until the broker confirms it.
//
// Messages are published with mandatory and immediate unset and default
// properties, except that Persistent sets delivery mode 2.
//
// Publish returns an error wrapping ErrPublish when:
//   - the publish frame could not be sent,
//   - the broker nacks the message,
//   - the channel closes before a confirmation arrives,
//   - the context is canceled while waiting.
//
// After a canceled wait the message MAY still have been accepted by the broker.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("%w: publisher closed", ErrPublish)
	}

	pub := amqp.Publishing{Body: msg.Body}
	if msg.Persistent {
		pub.DeliveryMode = amqp.Persistent
	}

	tag := p.nextTag
	if err := p.ch.PublishWithContext(ctx, msg.Exchange, msg.RoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("%w: send to %q: %w", ErrPublish, msg.RoutingKey, err)
	}
	p.nextTag++

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for confirmation of delivery tag %d: %w", ErrPublish, tag, ctx.Err())
	case c, ok := <-p.confirms:
		return handleConfirmation(p.log, msg, tag, c, ok)
	}
}

// Close marks the publisher closed. Calling Close multiple times does nothing.
func (p *AMQPPublisher) Close(ctx context.Context) {
	p.once.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.closed = true
		p.log.Debug("amqp publisher closed")
	})
}

func handleConfirmation(log *zap.SugaredLogger, msg Msg, tag uint64, c amqp.Confirmation, ok bool) error {
	if !ok {
		return fmt.Errorf("%w: channel closed before delivery tag %d was confirmed", ErrPublish, tag)
	}
	if c.DeliveryTag != tag {
		return fmt.Errorf("%w: confirmation for delivery tag %d, expected %d", ErrPublish, c.DeliveryTag, tag)
	}
	if !c.Ack {
		return fmt.Errorf("%w: broker nacked delivery tag %d", ErrPublish, tag)
	}

	log.Debugw("publish confirmed",
		"exchange", msg.Exchange,
		"routingKey", msg.RoutingKey,
		"deliveryTag", tag,
		"bytes", len(msg.Body),
	)
	return nil
}
