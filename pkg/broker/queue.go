package broker

import (
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// WebhookQueueName is the queue build jobs are submitted to.
	WebhookQueueName = "github-webhooks"

	// DefaultConsumerTimeout must exceed the longest expected job runtime, or the
	// broker redelivers a job that is still running to another worker.
	DefaultConsumerTimeout = 24 * time.Hour

	argConsumerTimeout = "x-consumer-timeout"
)

// QueueArguments are the broker-level arguments set on a queue declare.
// Only the keys this client relies on are exposed.
type QueueArguments struct {
	consumerTimeout time.Duration
}

// NewQueueArguments validates and returns queue arguments. The consumer timeout
// is sent in whole milliseconds, so it must be positive and a multiple of one.
func NewQueueArguments(consumerTimeout time.Duration) (QueueArguments, error) {
	if consumerTimeout <= 0 {
		return QueueArguments{}, fmt.Errorf("consumer timeout must be positive, got %s", consumerTimeout)
	}
	if consumerTimeout%time.Millisecond != 0 {
		return QueueArguments{}, fmt.Errorf("consumer timeout must be whole milliseconds, got %s", consumerTimeout)
	}
	return QueueArguments{consumerTimeout: consumerTimeout}, nil
}

// ConsumerTimeout returns the configured consumer timeout.
func (a QueueArguments) ConsumerTimeout() time.Duration {
	return a.consumerTimeout
}

// Table renders the arguments in their wire form.
func (a QueueArguments) Table() amqp.Table {
	return amqp.Table{
		argConsumerTimeout: a.consumerTimeout.Milliseconds(),
	}
}

// QueueDescriptor describes the queue to ensure.
type QueueDescriptor struct {
	Name      string
	Durable   bool
	Arguments QueueArguments
}

// WebhookQueue returns the descriptor of the durable webhook job queue.
func WebhookQueue() QueueDescriptor {
	return QueueDescriptor{
		Name:      WebhookQueueName,
		Durable:   true,
		Arguments: QueueArguments{consumerTimeout: DefaultConsumerTimeout},
	}
}

// Validate checks the descriptor before it is sent to the broker.
func (d QueueDescriptor) Validate() error {
	if d.Name == "" {
		return errors.New("queue name must not be empty")
	}
	if d.Arguments.consumerTimeout <= 0 {
		return fmt.Errorf("queue %q: consumer timeout must be positive", d.Name)
	}
	return nil
}

// QueueHandle describes a declared queue as reported by the broker.
type QueueHandle struct {
	Name      string
	Messages  int
	Consumers int
}

// QueueDeclarer is implemented by *Session and *amqp.Channel.
type QueueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// EnsureQueue declares the queue described by d.
//
// A broker rejection because the queue exists with different properties
// wraps ErrPreconditionFailed. Any other declare failure wraps ErrChannel.
// Neither is retried.
func EnsureQueue(declarer QueueDeclarer, d QueueDescriptor) (QueueHandle, error) {
	if err := d.Validate(); err != nil {
		return QueueHandle{}, fmt.Errorf("invalid queue descriptor: %w", err)
	}

	q, err := declarer.QueueDeclare(
		d.Name,
		d.Durable,
		false, // autoDelete
		false, // exclusive
		false, // noWait
		d.Arguments.Table(),
	)
	if err != nil {
		var amqpErr *amqp.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
			return QueueHandle{}, fmt.Errorf("%w: declare %q: %w", ErrPreconditionFailed, d.Name, err)
		}
		return QueueHandle{}, fmt.Errorf("%w: declare %q: %w", ErrChannel, d.Name, err)
	}

	return QueueHandle{
		Name:      q.Name,
		Messages:  q.Messages,
		Consumers: q.Consumers,
	}, nil
}
