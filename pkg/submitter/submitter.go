// Package submitter runs one job submission: read the payload, open a broker
// session, ensure the job queue, publish and wait for the confirm.
//
// Every payload source goes through the same Submit. A submission either ends
// with a confirmed publish or fails as a whole, even when the queue was
// ensured before the failure. Nothing is retried.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildit/jobsubmit/pkg/broker"
	"github.com/buildit/jobsubmit/pkg/metrics"
	"github.com/buildit/jobsubmit/pkg/payload"
	"github.com/buildit/jobsubmit/pkg/queue"
	"go.uber.org/zap"
)

// Session is the broker session a submission runs over.
type Session interface {
	broker.QueueDeclarer
	queue.ConfirmChannel
	Close() error
}

// Dialer opens a Session.
type Dialer func(ctx context.Context) (Session, error)

// Outcome describes a confirmed submission.
type Outcome struct {
	Queue   broker.QueueHandle
	Payload []byte
}

type Submitter struct {
	dial       Dialer
	descriptor broker.QueueDescriptor
	persistent bool
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	state      State
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithQueue overrides the queue to ensure and publish to.
func WithQueue(d broker.QueueDescriptor) Option {
	return func(s *Submitter) { s.descriptor = d }
}

// WithPersistent marks published messages persistent (delivery mode 2).
func WithPersistent(persistent bool) Option {
	return func(s *Submitter) { s.persistent = persistent }
}

// WithMetrics records stage durations and outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

// New returns a Submitter targeting the webhook job queue unless overridden.
func New(dial Dialer, log *zap.SugaredLogger, opts ...Option) (*Submitter, error) {
	if dial == nil {
		return nil, errors.New("invalid dialer: must not be nil")
	}
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}

	s := &Submitter{
		dial:       dial,
		descriptor: broker.WebhookQueue(),
		log:        log,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue descriptor: %w", err)
	}
	return s, nil
}

// State returns the state the last submission reached.
func (s *Submitter) State() State {
	return s.state
}

// Submit reads src and publishes it to the queue, returning once the broker
// has confirmed the message.
//
// The payload is read before any broker connection is made. The session is
// closed on every path once opened. Errors keep their sentinel (for example
// broker.ErrPreconditionFailed or queue.ErrPublish) for errors.Is.
func (s *Submitter) Submit(ctx context.Context, src payload.Source) (out *Outcome, err error) {
	s.state = StateIdle
	defer func() {
		if err != nil {
			s.transition(StateFailed)
			s.metrics.IncError(errorType(err))
		}
		s.metrics.RecordSubmission(err, len(outPayload(out)))
	}()

	var body []byte
	err = s.stage(metrics.StageReadPayload, func() error {
		var readErr error
		body, readErr = src.Read()
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var sess Session
	err = s.stage(metrics.StageConnect, func() error {
		var dialErr error
		sess, dialErr = s.dial(ctx)
		if dialErr == nil && sess == nil {
			return fmt.Errorf("%w: dialer returned no session", broker.ErrConnection)
		}
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.transition(StateConnected)
	s.transition(StateSessionOpen)

	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			s.log.Warnw("failed to close broker session", "error", closeErr)
		}
		if err == nil {
			s.transition(StateClosed)
		}
	}()

	var handle broker.QueueHandle
	err = s.stage(metrics.StageEnsureQueue, func() error {
		var ensureErr error
		handle, ensureErr = broker.EnsureQueue(sess, s.descriptor)
		return ensureErr
	})
	if err != nil {
		return nil, fmt.Errorf("ensure queue: %w", err)
	}
	s.transition(StateQueueEnsured)
	s.log.Debugw("queue ensured",
		"queue", handle.Name,
		"messages", handle.Messages,
		"consumers", handle.Consumers,
	)

	err = s.stage(metrics.StagePublish, func() error {
		pub, pubErr := queue.NewAMQPPublisher(sess, s.log)
		if pubErr != nil {
			return pubErr
		}
		defer pub.Close(ctx)

		return pub.Publish(ctx, queue.Msg{
			Exchange:   "",
			RoutingKey: handle.Name,
			Body:       body,
			Persistent: s.persistent,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("publish to %q: %w", handle.Name, err)
	}
	s.transition(StatePublished)

	return &Outcome{Queue: handle, Payload: body}, nil
}

func (s *Submitter) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordStage(name, err, time.Since(start).Seconds())
	return err
}

func (s *Submitter) transition(next State) {
	s.log.Debugw("submission state", "from", s.state.String(), "to", next.String())
	s.state = next
}

func outPayload(out *Outcome) []byte {
	if out == nil {
		return nil
	}
	return out.Payload
}

func errorType(err error) string {
	switch {
	case errors.Is(err, payload.ErrPayloadRead):
		return metrics.ErrTypePayloadRead
	case errors.Is(err, broker.ErrConnection):
		return metrics.ErrTypeConnection
	case errors.Is(err, broker.ErrPreconditionFailed):
		return metrics.ErrTypePreconditionFailed
	case errors.Is(err, broker.ErrChannel):
		return metrics.ErrTypeChannel
	case errors.Is(err, queue.ErrPublish):
		return metrics.ErrTypePublish
	default:
		return metrics.ErrTypeOther
	}
}
