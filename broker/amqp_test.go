package broker

import (
	"context"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	amqpURL       = os.Getenv("AMQP_URL")
	amqpAvailable = false
)

// Check if RabbitMQ is available and skip tests otherwise
func init() {
	if amqpURL == "" {
		amqpURL = NewAMQPConfig().URL
	}

	conn, err := amqp.Dial(amqpURL)

	if err != nil {
		return
	}

	conn.Close()

	amqpAvailable = true
}

func TestAMQPClientWatchAfterShutdown(t *testing.T) {
	conf := NewAMQPConfig()
	conf.MaxReconnectAttempts = 1

	client := NewAMQPClient(&conf, "relaycast_test", nil, func(string, []byte) {})
	require.NoError(t, client.Shutdown(context.Background()))

	done := make(chan error)
	closeCh := make(chan *amqp.Error, 1)
	closeCh <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"}

	finished := make(chan struct{})

	go func() {
		client.watch(closeCh, done)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("watch is blocked after shutdown")
	}

	select {
	case err := <-done:
		t.Errorf("unexpected error reported: %v", err)
	default:
	}
}

func TestAMQPClientRestartsConsumers(t *testing.T) {
	if !amqpAvailable {
		t.Skip("AMQP broker is not available")
	}

	conf := NewAMQPConfig()
	conf.URL = amqpURL
	conf.QueueExpires = 60

	queue := "relaycast-test-queue-0"
	received := make(chan []byte, 10)

	client := NewAMQPClient(&conf, "relaycast_test", []string{queue}, func(_ string, body []byte) {
		received <- body
	})

	require.NoError(t, client.Start(make(chan error, 1)))

	t.Cleanup(func() {
		client.withChannel(func(ch *amqp.Channel) error { // nolint:errcheck
			_, err := ch.QueueDelete(queue, false, false, false)
			return err
		})
		client.Shutdown(context.Background()) // nolint:errcheck
	})

	ctx := context.Background()

	require.NoError(t, client.BindQueue(ctx, "relaycast_test", queue, "app1.chat.#"))

	client.mu.RLock()
	stale := client.consumeCh
	client.mu.RUnlock()

	// Passive declaration of a missing queue makes the broker close the channel
	_, err := stale.QueueDeclarePassive("relaycast-test-missing", false, false, false, false, nil)
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		client.Publish(ctx, "relaycast_test", "app1.chat", []byte(`{}`)) // nolint:errcheck

		select {
		case <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	client.mu.RLock()
	defer client.mu.RUnlock()

	assert.NotSame(t, stale, client.consumeCh)
}
