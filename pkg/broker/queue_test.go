package broker

import (
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declareCall struct {
	name       string
	durable    bool
	autoDelete bool
	exclusive  bool
	noWait     bool
	args       amqp.Table
}

// fakeDeclarer emulates the broker's declare semantics for a single vhost.
type fakeDeclarer struct {
	calls  []declareCall
	queues map[string]declareCall
	err    error
}

func newFakeDeclarer() *fakeDeclarer {
	return &fakeDeclarer{queues: map[string]declareCall{}}
}

func (f *fakeDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	call := declareCall{name, durable, autoDelete, exclusive, noWait, args}
	f.calls = append(f.calls, call)
	if f.err != nil {
		return amqp.Queue{}, f.err
	}
	if existing, ok := f.queues[name]; ok {
		if existing.durable != durable || !tablesEqual(existing.args, args) {
			return amqp.Queue{}, &amqp.Error{
				Code:   amqp.PreconditionFailed,
				Reason: "PRECONDITION_FAILED - inequivalent arg 'durable' for queue '" + name + "'",
			}
		}
		return amqp.Queue{Name: name, Messages: 3}, nil
	}
	f.queues[name] = call
	return amqp.Queue{Name: name}, nil
}

func tablesEqual(a, b amqp.Table) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestNewQueueArguments(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{name: "24 hours", timeout: 24 * time.Hour},
		{name: "one millisecond", timeout: time.Millisecond},
		{name: "zero", timeout: 0, wantErr: true},
		{name: "negative", timeout: -time.Second, wantErr: true},
		{name: "sub-millisecond", timeout: 1500 * time.Microsecond, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := NewQueueArguments(tt.timeout)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.timeout, args.ConsumerTimeout())
		})
	}
}

func TestQueueArguments_Table(t *testing.T) {
	args, err := NewQueueArguments(24 * time.Hour)
	require.NoError(t, err)

	table := args.Table()
	require.Len(t, table, 1)
	v, ok := table["x-consumer-timeout"].(int64)
	require.True(t, ok, "x-consumer-timeout must be sent as int64")
	assert.Equal(t, int64(86_400_000), v)
	require.NoError(t, table.Validate())
}

func TestWebhookQueue(t *testing.T) {
	d := WebhookQueue()

	assert.Equal(t, "github-webhooks", d.Name)
	assert.True(t, d.Durable)
	assert.Equal(t, amqp.Table{"x-consumer-timeout": int64(86_400_000)}, d.Arguments.Table())
	require.NoError(t, d.Validate())

	// Every call must produce the same descriptor.
	assert.Equal(t, d, WebhookQueue())
}

func TestQueueDescriptor_Validate(t *testing.T) {
	args, err := NewQueueArguments(time.Minute)
	require.NoError(t, err)

	require.Error(t, QueueDescriptor{Name: "", Durable: true, Arguments: args}.Validate())
	require.Error(t, QueueDescriptor{Name: "jobs", Durable: true}.Validate())
	require.NoError(t, QueueDescriptor{Name: "jobs", Durable: true, Arguments: args}.Validate())
}

func TestEnsureQueue_DeclaresWithFixedProperties(t *testing.T) {
	f := newFakeDeclarer()

	h, err := EnsureQueue(f, WebhookQueue())
	require.NoError(t, err)
	assert.Equal(t, "github-webhooks", h.Name)

	require.Len(t, f.calls, 1)
	call := f.calls[0]
	assert.Equal(t, "github-webhooks", call.name)
	assert.True(t, call.durable)
	assert.False(t, call.autoDelete)
	assert.False(t, call.exclusive)
	assert.False(t, call.noWait)
	assert.Equal(t, int64(86_400_000), call.args["x-consumer-timeout"])
}

func TestEnsureQueue_Idempotent(t *testing.T) {
	f := newFakeDeclarer()

	first, err := EnsureQueue(f, WebhookQueue())
	require.NoError(t, err)
	second, err := EnsureQueue(f, WebhookQueue())
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	require.Len(t, f.calls, 2)
	assert.Equal(t, f.calls[0], f.calls[1])
	require.Len(t, f.queues, 1)
}

func TestEnsureQueue_PreconditionFailed(t *testing.T) {
	t.Run("durability mismatch", func(t *testing.T) {
		f := newFakeDeclarer()
		f.queues["github-webhooks"] = declareCall{
			name:    "github-webhooks",
			durable: false,
			args:    WebhookQueue().Arguments.Table(),
		}

		_, err := EnsureQueue(f, WebhookQueue())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPreconditionFailed)
		assert.NotErrorIs(t, err, ErrChannel)

		var amqpErr *amqp.Error
		require.ErrorAs(t, err, &amqpErr)
		assert.Equal(t, amqp.PreconditionFailed, amqpErr.Code)
	})

	t.Run("argument mismatch", func(t *testing.T) {
		f := newFakeDeclarer()
		f.queues["github-webhooks"] = declareCall{
			name:    "github-webhooks",
			durable: true,
			args:    amqp.Table{"x-consumer-timeout": int64(1_800_000)},
		}

		_, err := EnsureQueue(f, WebhookQueue())
		assert.ErrorIs(t, err, ErrPreconditionFailed)
		// Rejected once, never redeclared.
		assert.Len(t, f.calls, 1)
	})
}

func TestEnsureQueue_ChannelError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "closed channel", err: amqp.ErrClosed},
		{name: "access refused", err: &amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}},
		{name: "non-amqp error", err: errors.New("broken pipe")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeDeclarer()
			f.err = tt.err

			_, err := EnsureQueue(f, WebhookQueue())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrChannel)
			assert.ErrorIs(t, err, tt.err)
			assert.NotErrorIs(t, err, ErrPreconditionFailed)
		})
	}
}

func TestEnsureQueue_InvalidDescriptor(t *testing.T) {
	f := newFakeDeclarer()

	_, err := EnsureQueue(f, QueueDescriptor{Durable: true})
	require.Error(t, err)
	assert.Empty(t, f.calls)
}
