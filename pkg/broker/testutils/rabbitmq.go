package testutils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	RabbitMQImage  = "rabbitmq:3.13-alpine"
	rabbitUser     = "jobsubmit"
	rabbitPassword = "jobsubmit"
	startupTimeout = 60 * time.Second
)

// StartRabbitMQ returns the AMQP URI of a broker for integration tests.
//
// A .env.test file in the test's package directory is loaded first. When
// BUILDIT_AMQP_ADDR is then set, that broker is used and no container is
// started. Otherwise a RabbitMQ container is started and terminated when the
// test finishes.
func StartRabbitMQ(t *testing.T) string {
	t.Helper()

	if err := godotenv.Load(".env.test"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.Logf("could not load .env.test: %v (using defaults)", err)
	}

	if addr := os.Getenv("BUILDIT_AMQP_ADDR"); addr != "" {
		return addr
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        RabbitMQImage,
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": rabbitUser,
			"RABBITMQ_DEFAULT_PASS": rabbitPassword,
		},
		WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://%s:%s@%s:%s/", rabbitUser, rabbitPassword, host, port.Port())
}

// OpenChannel opens a raw connection and channel for test setup and
// assertions, closed when the test finishes.
func OpenChannel(t *testing.T, addr string) *amqp.Channel {
	t.Helper()

	conn, err := amqp.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)

	return ch
}

// DeleteQueue removes a queue so tests start from a clean broker state.
func DeleteQueue(t *testing.T, addr, name string) {
	t.Helper()

	ch := OpenChannel(t, addr)
	_, err := ch.QueueDelete(name, false, false, false)
	require.NoError(t, err)
	_ = ch.Close()
}

// GetMessage fetches a single message from the queue, polling until one
// arrives or the timeout expires.
func GetMessage(t *testing.T, addr, queue string, timeout time.Duration) amqp.Delivery {
	t.Helper()

	ch := OpenChannel(t, addr)
	defer ch.Close()

	deadline := time.Now().Add(timeout)
	for {
		msg, ok, err := ch.Get(queue, true)
		require.NoError(t, err)
		if ok {
			return msg
		}
		if time.Now().After(deadline) {
			t.Fatalf("no message on queue %q after %s", queue, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
