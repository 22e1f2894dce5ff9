package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Session is a channel over a dedicated broker connection. All queue declares
// and publishes of one invocation go through a single Session.
type Session struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
	log  *zap.SugaredLogger

	once     sync.Once
	closeErr error
}

// Connect dials the broker at cfg.Addr and opens a channel.
//
// The context bounds the dial and the AMQP handshake; no timeout is applied
// otherwise. Dial, authentication and negotiation failures wrap ErrConnection,
// a failure to open the channel wraps ErrChannel. On error nothing is left open.
func Connect(ctx context.Context, cfg Config, log *zap.SugaredLogger) (*Session, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: empty broker address", ErrConnection)
	}

	uri, err := amqp.ParseURI(cfg.Addr)
	if err != nil {
		// url.Error quotes the whole URI, credentials included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: invalid broker address: %w", ErrConnection, err)
	}

	name := connectionName(cfg.ConnectionName)
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(name)

	log.Infow("connecting to broker",
		"host", uri.Host,
		"port", uri.Port,
		"vhost", uri.Vhost,
		"connectionName", name,
	)

	var stop func() bool
	dial := func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		c, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		// Unblocks a handshake stuck on a silent peer once the caller gives up.
		stop = context.AfterFunc(ctx, func() { _ = c.Close() })
		return c, nil
	}

	conn, err := amqp.DialConfig(cfg.Addr, amqp.Config{
		Heartbeat:  cfg.Heartbeat,
		Locale:     cfg.Locale,
		Properties: props,
		Dial:       dial,
	})
	if stop != nil {
		stop()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s:%d: %w", ErrConnection, uri.Host, uri.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %w", ErrChannel, err)
	}

	log.Debugw("broker session open", "connectionName", name)

	return &Session{
		conn: conn,
		ch:   ch,
		name: name,
		log:  log,
	}, nil
}

func connectionName(prefix string) string {
	if prefix == "" {
		prefix = "jobsubmit"
	}
	return prefix + "-" + uuid.NewString()
}

// Name returns the connection name announced to the broker.
func (s *Session) Name() string {
	return s.name
}

// QueueDeclare declares a queue on the session channel.
func (s *Session) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return s.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

// Confirm puts the session channel into publisher confirm mode.
func (s *Session) Confirm(noWait bool) error {
	return s.ch.Confirm(noWait)
}

// NotifyPublish registers a listener for publisher confirmations.
func (s *Session) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	return s.ch.NotifyPublish(confirm)
}

// PublishWithContext publishes a message on the session channel.
func (s *Session) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return s.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Close releases the channel and then the connection.
//
// Close is safe to call multiple times; later calls return the first result.
// Resources the broker already closed (for example a channel closed by a
// precondition failure) are not reported as errors.
func (s *Session) Close() error {
	s.once.Do(func() {
		var errs []error
		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		s.closeErr = errors.Join(errs...)
		s.log.Debugw("broker session closed", "connectionName", s.name)
	})
	return s.closeErr
}
