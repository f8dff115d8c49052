package broker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMatch(t *testing.T) {
	t.Run("Trailing hash matches the exact key and deeper keys", func(t *testing.T) {
		assert.True(t, TopicMatch("app1.chat.#", "app1.chat"))
		assert.True(t, TopicMatch("app1.chat.#", "app1.chat.general"))
		assert.True(t, TopicMatch("app1.chat.#", "app1.chat.general.private"))
	})

	t.Run("Neighbour rooms do not match", func(t *testing.T) {
		assert.False(t, TopicMatch("app1.chat.#", "app1.chatter"))
		assert.False(t, TopicMatch("app1.chat.#", "app2.chat"))
		assert.False(t, TopicMatch("app1.chat.#", "app1"))
	})

	t.Run("Star matches exactly one word", func(t *testing.T) {
		assert.True(t, TopicMatch("app1.*", "app1.chat"))
		assert.False(t, TopicMatch("app1.*", "app1.chat.general"))
		assert.False(t, TopicMatch("app1.*", "app1"))
	})

	t.Run("Hash alone matches everything", func(t *testing.T) {
		assert.True(t, TopicMatch("#", "app1.chat"))
		assert.True(t, TopicMatch("#", ""))
	})

	t.Run("Hash in the middle", func(t *testing.T) {
		assert.True(t, TopicMatch("app1.#.room", "app1.room"))
		assert.True(t, TopicMatch("app1.#.room", "app1.a.b.room"))
		assert.False(t, TopicMatch("app1.#.room", "app1.a.b"))
	})
}

type collector struct {
	mu         sync.Mutex
	deliveries map[string][]string
}

func newCollector() *collector {
	return &collector{deliveries: make(map[string][]string)}
}

func (c *collector) handle(queue string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deliveries[queue] = append(c.deliveries[queue], string(body))
}

func (c *collector) get(queue string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deliveries[queue]
}

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	exchange := NewMemoryExchange()

	a := newCollector()
	b := newCollector()

	clientA := NewMemoryClient(exchange, []string{"a-queue-0", "a-queue-1"}, a.handle)
	clientB := NewMemoryClient(exchange, []string{"b-queue-0"}, b.handle)

	require.NoError(t, clientA.Start(make(chan error)))
	require.NoError(t, clientB.Start(make(chan error)))

	t.Run("Publish without bindings", func(t *testing.T) {
		require.NoError(t, clientA.Publish(ctx, "relaycast", "app1.chat", []byte("lost")))

		assert.Empty(t, a.get("a-queue-0"))
		assert.Empty(t, b.get("b-queue-0"))
	})

	t.Run("Bind is idempotent and delivers once per queue", func(t *testing.T) {
		require.NoError(t, clientA.BindQueue(ctx, "relaycast", "a-queue-1", "app1.chat.#"))
		require.NoError(t, clientA.BindQueue(ctx, "relaycast", "a-queue-1", "app1.chat.#"))
		require.NoError(t, clientA.BindQueue(ctx, "relaycast", "a-queue-1", "app1.#"))
		require.NoError(t, clientB.BindQueue(ctx, "relaycast", "b-queue-0", "app1.chat.#"))

		assert.Len(t, exchange.Bindings("a-queue-1"), 2)

		require.NoError(t, clientB.Publish(ctx, "relaycast", "app1.chat", []byte("hello")))

		assert.Equal(t, []string{"hello"}, a.get("a-queue-1"))
		assert.Equal(t, []string{"hello"}, b.get("b-queue-0"))
		assert.Empty(t, a.get("a-queue-0"))
	})

	t.Run("Unbind is idempotent", func(t *testing.T) {
		require.NoError(t, clientA.UnbindQueue(ctx, "relaycast", "a-queue-1", "app1.chat.#"))
		require.NoError(t, clientA.UnbindQueue(ctx, "relaycast", "a-queue-1", "app1.chat.#"))
		require.NoError(t, clientA.UnbindQueue(ctx, "relaycast", "a-queue-1", "app1.#"))

		assert.Empty(t, exchange.Bindings("a-queue-1"))

		require.NoError(t, clientA.Publish(ctx, "relaycast", "app1.chat", []byte("again")))

		assert.Equal(t, []string{"hello"}, a.get("a-queue-1"))
		assert.Equal(t, []string{"hello", "again"}, b.get("b-queue-0"))
	})

	t.Run("Unknown queue", func(t *testing.T) {
		assert.Error(t, clientA.BindQueue(ctx, "relaycast", "c-queue-0", "app1.chat.#"))
	})

	t.Run("Shut down client neither publishes nor receives", func(t *testing.T) {
		require.NoError(t, clientB.Shutdown(ctx))

		assert.Error(t, clientB.Publish(ctx, "relaycast", "app1.chat", []byte("closed")))

		require.NoError(t, clientA.Publish(ctx, "relaycast", "app1.chat", []byte("closed")))
		assert.Equal(t, []string{"hello", "again"}, b.get("b-queue-0"))
	})
}
