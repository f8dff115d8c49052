package binding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaycast/relaycast-go/broker"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/mocks"
	"github.com/relaycast/relaycast-go/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMemoryManager(t *testing.T, opts ...Option) (*Manager, *broker.MemoryExchange, *routing.Codec) {
	codec, err := routing.NewCodec("node-1", 10)
	require.NoError(t, err)

	exchange := broker.NewMemoryExchange()
	client := broker.NewMemoryClient(exchange, codec.Queues(), func(string, []byte) {})
	require.NoError(t, client.Start(make(chan error)))

	return NewManager(client, codec, "relaycast", opts...), exchange, codec
}

func TestBindUnbind(t *testing.T) {
	ctx := context.Background()
	m, exchange, codec := newMemoryManager(t)

	entry := codec.Entry("app1:chat")
	assert.Equal(t, "app1.chat.#", entry.Key)
	assert.Equal(t, "node-1-queue-7", entry.Queue)

	t.Run("Bind is idempotent", func(t *testing.T) {
		require.NoError(t, m.Bind(ctx, "app1:chat"))
		require.NoError(t, m.Bind(ctx, "app1:chat"))

		assert.True(t, m.IsBound("app1:chat"))
		assert.Equal(t, 1, m.Size())
		assert.Equal(t, []string{"app1.chat.#"}, exchange.Bindings(entry.Queue))
	})

	t.Run("Unbind is idempotent", func(t *testing.T) {
		require.NoError(t, m.Unbind(ctx, "app1:chat"))
		require.NoError(t, m.Unbind(ctx, "app1:chat"))

		assert.False(t, m.IsBound("app1:chat"))
		assert.Equal(t, 0, m.Size())
		assert.Empty(t, exchange.Bindings(entry.Queue))
	})

	t.Run("Unbind of a room never bound", func(t *testing.T) {
		assert.NoError(t, m.Unbind(ctx, "app1:never"))
	})

	t.Run("Bind then unbind leaves no broker state", func(t *testing.T) {
		for _, room := range []string{"app1:a", "app2:b", "tenant:lobby"} {
			require.NoError(t, m.Bind(ctx, room))
			require.NoError(t, m.Unbind(ctx, room))
		}

		for _, queue := range codec.Queues() {
			assert.Empty(t, exchange.Bindings(queue))
		}
	})
}

func TestSharedBindingKey(t *testing.T) {
	ctx := context.Background()
	m, exchange, codec := newMemoryManager(t)

	a := codec.Entry("app1:b.c")
	b := codec.Entry("app1:b:c")

	require.Equal(t, a.Key, b.Key)
	require.Equal(t, a.Queue, b.Queue)

	require.NoError(t, m.Bind(ctx, "app1:b.c"))
	require.NoError(t, m.Bind(ctx, "app1:b:c"))

	require.NoError(t, m.Unbind(ctx, "app1:b.c"))
	assert.Equal(t, []string{a.Key}, exchange.Bindings(a.Queue), "key is still used by another room")
	assert.True(t, m.IsBound("app1:b:c"))

	require.NoError(t, m.Unbind(ctx, "app1:b:c"))
	assert.Empty(t, exchange.Bindings(a.Queue))
}

func TestEventsAreProcessedInOrder(t *testing.T) {
	m, exchange, codec := newMemoryManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() { done <- m.Run(ctx) }()

	entry := codec.Entry("app1:chat")

	for i := 0; i < 10; i++ {
		m.SubscriptionCreated("app1:chat")
		m.SubscriptionDeleted("app1:chat")
	}

	m.SubscriptionCreated("app1:chat")

	assert.Eventually(t, func() bool {
		return m.IsBound("app1:chat") && len(exchange.Bindings(entry.Queue)) == 1
	}, time.Second, 10*time.Millisecond)

	m.SubscriptionDeleted("app1:chat")

	assert.Eventually(t, func() bool {
		return !m.IsBound("app1:chat") && len(exchange.Bindings(entry.Queue)) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestFailedBindIsRetried(t *testing.T) {
	codec, err := routing.NewCodec("node-1", 10)
	require.NoError(t, err)

	entry := codec.Entry("app1:chat")

	client := mocks.NewClient(t)
	client.On("OnReconnect", mock.Anything).Return()
	client.On("BindQueue", mock.Anything, "relaycast", entry.Queue, entry.Key).Return(errors.New("channel closed")).Once()
	client.On("BindQueue", mock.Anything, "relaycast", entry.Queue, entry.Key).Return(nil)

	registry := metrics.NewMetrics(nil, 10)
	m := NewManager(client, codec, "relaycast", WithRetryInterval(20*time.Millisecond), WithInstrumenter(registry))

	err = m.Bind(context.Background(), "app1:chat")
	require.Error(t, err)

	assert.False(t, m.IsBound("app1:chat"))
	assert.Equal(t, 1, m.Pending())
	assert.Equal(t, uint64(1), registry.Counter("bind_failures_total").Value())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Run(ctx) // nolint:errcheck

	assert.Eventually(t, func() bool {
		return m.IsBound("app1:chat")
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, uint64(1), registry.Gauge("bindings_num").Value())
}

func TestFailedBindIsDroppedAfterUnbind(t *testing.T) {
	codec, err := routing.NewCodec("node-1", 10)
	require.NoError(t, err)

	entry := codec.Entry("app1:chat")

	client := mocks.NewClient(t)
	client.On("OnReconnect", mock.Anything).Return()
	client.On("BindQueue", mock.Anything, "relaycast", entry.Queue, entry.Key).Return(errors.New("channel closed")).Once()
	client.On("UnbindQueue", mock.Anything, "relaycast", entry.Queue, entry.Key).Return(nil).Once()

	m := NewManager(client, codec, "relaycast", WithRetryInterval(time.Hour))

	require.Error(t, m.Bind(context.Background(), "app1:chat"))
	require.NoError(t, m.Unbind(context.Background(), "app1:chat"))

	assert.Equal(t, 0, m.Pending())

	m.retry(context.Background())

	client.AssertNumberOfCalls(t, "BindQueue", 1)
}

func TestRebind(t *testing.T) {
	codec, err := routing.NewCodec("node-1", 4)
	require.NoError(t, err)

	client := mocks.NewClient(t)

	var reconnect func()

	client.On("OnReconnect", mock.Anything).Run(func(args mock.Arguments) {
		reconnect = args.Get(0).(func())
	}).Return()
	var binds int64

	client.On("BindQueue", mock.Anything, "relaycast", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		atomic.AddInt64(&binds, 1)
	}).Return(nil)

	m := NewManager(client, codec, "relaycast")

	require.NoError(t, m.Bind(context.Background(), "app1:chat"))
	require.NoError(t, m.Bind(context.Background(), "app1:lobby"))

	assert.Equal(t, int64(2), atomic.LoadInt64(&binds))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go m.Run(ctx) // nolint:errcheck

	require.NotNil(t, reconnect)
	reconnect()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&binds) == 4
	}, time.Second, 10*time.Millisecond)

	client.AssertCalled(t, "BindQueue", mock.Anything, "relaycast", codec.Entry("app1:lobby").Queue, "app1.lobby.#")
}
