package broker

import (
	"context"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/relaycast/relaycast-go/common"
)

type memqueue struct {
	name     string
	keys     map[string]struct{}
	handler  DeliveryHandler
	consumer *MemoryClient
}

// MemoryExchange is an in-process topic exchange.
// It may be shared by several clients to run multiple instances within a single process.
type MemoryExchange struct {
	queues map[string]*memqueue
	mu     sync.RWMutex
}

func NewMemoryExchange() *MemoryExchange {
	return &MemoryExchange{queues: make(map[string]*memqueue)}
}

// Bindings returns the keys bound to the queue
func (e *MemoryExchange) Bindings(queue string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	q, ok := e.queues[queue]

	if !ok {
		return nil
	}

	keys := make([]string, 0, len(q.keys))

	for k := range q.keys {
		keys = append(keys, k)
	}

	return keys
}

func (e *MemoryExchange) declare(name string, client *MemoryClient, handler DeliveryHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.queues[name]; ok {
		q.handler = handler
		q.consumer = client
		return
	}

	e.queues[name] = &memqueue{name: name, keys: make(map[string]struct{}), handler: handler, consumer: client}
}

func (e *MemoryExchange) bind(queue string, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[queue]

	if !ok {
		return common.ErrBroker.New("queue not found: %s", queue)
	}

	q.keys[key] = struct{}{}

	return nil
}

func (e *MemoryExchange) unbind(queue string, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[queue]

	if !ok {
		return common.ErrBroker.New("queue not found: %s", queue)
	}

	delete(q.keys, key)

	return nil
}

// route delivers the message at most once to every queue with a matching binding
func (e *MemoryExchange) route(key string, body []byte) {
	e.mu.RLock()

	targets := make([]*memqueue, 0)

	for _, q := range e.queues {
		for pattern := range q.keys {
			if TopicMatch(pattern, key) {
				targets = append(targets, q)
				break
			}
		}
	}

	e.mu.RUnlock()

	for _, q := range targets {
		if q.consumer.isClosed() {
			continue
		}

		q.handler(q.name, body)
	}
}

// MemoryClient is a broker client working on top of a MemoryExchange
type MemoryClient struct {
	exchange *MemoryExchange
	queues   []string
	handler  DeliveryHandler

	closed bool
	mu     sync.RWMutex

	log *log.Entry
}

var _ Client = (*MemoryClient)(nil)

func NewMemoryClient(exchange *MemoryExchange, queues []string, handler DeliveryHandler) *MemoryClient {
	return &MemoryClient{
		exchange: exchange,
		queues:   queues,
		handler:  handler,
		log:      log.WithFields(log.Fields{"context": "broker", "provider": "memory"}),
	}
}

func (MemoryClient) Announce() string {
	return "Using in-memory broker (single process only)"
}

func (MemoryClient) OnReconnect(fn func()) {}

func (m *MemoryClient) Start(done chan (error)) error {
	for _, q := range m.queues {
		m.exchange.declare(q, m, m.handler)
	}

	return nil
}

func (m *MemoryClient) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

// The in-memory broker has a single exchange, so the exchange name is ignored
func (m *MemoryClient) BindQueue(ctx context.Context, exchange string, queue string, key string) error {
	return m.exchange.bind(queue, key)
}

func (m *MemoryClient) UnbindQueue(ctx context.Context, exchange string, queue string, key string) error {
	return m.exchange.unbind(queue, key)
}

func (m *MemoryClient) Publish(ctx context.Context, exchange string, key string, body []byte) error {
	if m.isClosed() {
		return common.ErrBroker.New("client is closed")
	}

	m.exchange.route(key, body)

	return nil
}

func (m *MemoryClient) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.closed
}

// TopicMatch reports whether the routing key matches the binding pattern
// using AMQP topic exchange rules: "*" matches exactly one word, "#" zero or more words
func TopicMatch(pattern string, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern []string, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}

		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}
