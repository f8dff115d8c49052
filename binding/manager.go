// Package binding keeps the instance's shard queue bindings in sync with local room membership
package binding

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/relaycast/relaycast-go/broker"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/routing"
)

const (
	metricsBindings       = "bindings_num"
	metricsBindTotal      = "bind_total"
	metricsUnbindTotal    = "unbind_total"
	metricsBindFailures   = "bind_failures_total"
	defaultRetryInterval  = 5 * time.Second
	defaultOperationLimit = 10 * time.Second
)

type EventKind int

const (
	// The first local subscriber joined the room
	SubscriptionCreated EventKind = iota
	// The last local subscriber left the room
	SubscriptionDeleted
	// Broker connection restored, all bindings must be re-issued
	RebindRequested
)

func (k EventKind) String() string {
	switch k {
	case SubscriptionCreated:
		return "created"
	case SubscriptionDeleted:
		return "deleted"
	case RebindRequested:
		return "rebind"
	}

	return "unknown"
}

type Event struct {
	Kind EventKind
	Room string
}

// Manager owns the broker bindings of the instance's shard queues.
//
// Rooms sharing a binding key (e.g. "a:b.c" and "a:b:c") share the broker binding,
// so the key is only unbound when no desired room maps to it.
type Manager struct {
	client   broker.Client
	codec    *routing.Codec
	exchange string

	// room -> binding entry for rooms that should be bound
	desired map[string]routing.Entry
	// binding key -> rooms
	keys map[string]map[string]struct{}
	// rooms with a successful broker bind
	bound map[string]struct{}
	// failed operations to retry
	pending map[string]EventKind
	mu      sync.Mutex

	// sequential event queue fed by the registry hooks
	queue    []Event
	queueMu  sync.Mutex
	notifyCh chan struct{}

	retryInterval  time.Duration
	operationLimit time.Duration

	metrics metrics.Instrumenter
	log     *log.Entry
}

type Option func(*Manager)

func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.retryInterval = d
	}
}

func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(m *Manager) {
		m.metrics = i
	}
}

// WithOperationTimeout limits a single broker bind/unbind call issued from the event loop
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.operationLimit = d
	}
}

func NewManager(client broker.Client, codec *routing.Codec, exchange string, opts ...Option) *Manager {
	m := &Manager{
		client:         client,
		codec:          codec,
		exchange:       exchange,
		desired:        make(map[string]routing.Entry),
		keys:           make(map[string]map[string]struct{}),
		bound:          make(map[string]struct{}),
		pending:        make(map[string]EventKind),
		notifyCh:       make(chan struct{}, 1),
		retryInterval:  defaultRetryInterval,
		operationLimit: defaultOperationLimit,
		metrics:        metrics.NoopMetrics{},
		log:            log.WithField("context", "binding"),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.metrics.RegisterGauge(metricsBindings, "The number of rooms bound to the instance's shard queues")
	m.metrics.RegisterCounter(metricsBindTotal, "The total number of broker bind calls")
	m.metrics.RegisterCounter(metricsUnbindTotal, "The total number of broker unbind calls")
	m.metrics.RegisterCounter(metricsBindFailures, "The total number of failed broker bind/unbind calls")

	client.OnReconnect(m.RequestRebind)

	return m
}

// SubscriptionCreated enqueues a bind for the room. Never blocks.
func (m *Manager) SubscriptionCreated(room string) {
	m.enqueue(Event{Kind: SubscriptionCreated, Room: room})
}

// SubscriptionDeleted enqueues an unbind for the room. Never blocks.
func (m *Manager) SubscriptionDeleted(room string) {
	m.enqueue(Event{Kind: SubscriptionDeleted, Room: room})
}

// RequestRebind enqueues re-issuing of all desired bindings
func (m *Manager) RequestRebind() {
	m.enqueue(Event{Kind: RebindRequested})
}

func (m *Manager) enqueue(ev Event) {
	m.queueMu.Lock()
	m.queue = append(m.queue, ev)
	m.queueMu.Unlock()

	select {
	case m.notifyCh <- struct{}{}:
	default:
	}
}

func (m *Manager) dequeue() []Event {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	events := m.queue
	m.queue = nil

	return events
}

// Run processes subscription events in order and retries failed operations until the context is done
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.notifyCh:
			for _, ev := range m.dequeue() {
				m.handle(ctx, ev)
			}
		case <-ticker.C:
			m.retry(ctx)
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev Event) {
	opCtx, cancel := context.WithTimeout(ctx, m.operationLimit)
	defer cancel()

	switch ev.Kind {
	case SubscriptionCreated:
		m.Bind(opCtx, ev.Room) // nolint:errcheck
	case SubscriptionDeleted:
		m.Unbind(opCtx, ev.Room) // nolint:errcheck
	case RebindRequested:
		m.Rebind(ctx)
	}
}

// Bind binds the room's shard queue. Idempotent; failures are logged,
// scheduled for retry and returned for inspection.
func (m *Manager) Bind(ctx context.Context, room string) error {
	entry := m.codec.Entry(room)

	m.mu.Lock()
	m.desired[room] = entry

	if _, ok := m.keys[entry.Key]; !ok {
		m.keys[entry.Key] = make(map[string]struct{})
	}

	m.keys[entry.Key][room] = struct{}{}
	m.mu.Unlock()

	return m.bind(ctx, entry)
}

func (m *Manager) bind(ctx context.Context, entry routing.Entry) error {
	m.metrics.CounterIncrement(metricsBindTotal)

	err := m.client.BindQueue(ctx, m.exchange, entry.Queue, entry.Key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.pending[entry.Room] = SubscriptionCreated
		m.metrics.CounterIncrement(metricsBindFailures)
		m.entryLog(entry).Errorf("Unable to bind queue: %v", err)

		return err
	}

	delete(m.pending, entry.Room)

	// The room might have been unbound while the bind was in flight
	if _, ok := m.desired[entry.Room]; ok {
		m.bound[entry.Room] = struct{}{}
	}

	m.metrics.GaugeSet(metricsBindings, uint64(len(m.bound)))
	m.entryLog(entry).Debug("Bound queue")

	return nil
}

// Unbind removes the room's binding. Safe to call for rooms never bound.
// The broker binding is kept while another room shares the key.
func (m *Manager) Unbind(ctx context.Context, room string) error {
	entry := m.codec.Entry(room)

	m.mu.Lock()
	delete(m.desired, room)
	delete(m.bound, room)

	if rooms, ok := m.keys[entry.Key]; ok {
		delete(rooms, room)

		if len(rooms) > 0 {
			delete(m.pending, room)
			m.metrics.GaugeSet(metricsBindings, uint64(len(m.bound)))
			m.mu.Unlock()

			m.entryLog(entry).Debug("Binding key is shared with another room, keep it")

			return nil
		}

		delete(m.keys, entry.Key)
	}

	m.metrics.GaugeSet(metricsBindings, uint64(len(m.bound)))
	m.mu.Unlock()

	return m.unbind(ctx, entry)
}

func (m *Manager) unbind(ctx context.Context, entry routing.Entry) error {
	m.metrics.CounterIncrement(metricsUnbindTotal)

	err := m.client.UnbindQueue(ctx, m.exchange, entry.Queue, entry.Key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.pending[entry.Room] = SubscriptionDeleted
		m.metrics.CounterIncrement(metricsBindFailures)
		m.entryLog(entry).Errorf("Unable to unbind queue: %v", err)

		return err
	}

	delete(m.pending, entry.Room)
	m.entryLog(entry).Debug("Unbound queue")

	return nil
}

// Rebind re-issues every desired binding, e.g. after the broker connection has been restored
func (m *Manager) Rebind(ctx context.Context) {
	m.mu.Lock()
	entries := make([]routing.Entry, 0, len(m.desired))

	for _, entry := range m.desired {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	m.log.Infof("Re-binding %d rooms", len(entries))

	for _, entry := range entries {
		opCtx, cancel := context.WithTimeout(ctx, m.operationLimit)
		m.bind(opCtx, entry) // nolint:errcheck
		cancel()
	}
}

// retry re-issues failed operations which still match the desired state
func (m *Manager) retry(ctx context.Context) {
	m.mu.Lock()

	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}

	binds := make([]routing.Entry, 0)
	unbinds := make([]routing.Entry, 0)

	for room, kind := range m.pending {
		entry, desired := m.desired[room]

		switch {
		case kind == SubscriptionCreated && desired:
			binds = append(binds, entry)
		case kind == SubscriptionDeleted && !desired:
			entry = m.codec.Entry(room)

			if _, shared := m.keys[entry.Key]; shared {
				delete(m.pending, room)
				continue
			}

			unbinds = append(unbinds, entry)
		default:
			delete(m.pending, room)
		}
	}

	m.mu.Unlock()

	m.log.Debugf("Retrying %d binds and %d unbinds", len(binds), len(unbinds))

	for _, entry := range binds {
		opCtx, cancel := context.WithTimeout(ctx, m.operationLimit)
		m.bind(opCtx, entry) // nolint:errcheck
		cancel()
	}

	for _, entry := range unbinds {
		opCtx, cancel := context.WithTimeout(ctx, m.operationLimit)
		m.unbind(opCtx, entry) // nolint:errcheck
		cancel()
	}
}

// Size returns the number of rooms currently bound
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.bound)
}

func (m *Manager) IsBound(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.bound[room]
	return ok
}

// Pending returns the number of failed operations waiting for retry
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pending)
}

func (m *Manager) entryLog(entry routing.Entry) *log.Entry {
	return m.log.WithFields(log.Fields{"room": entry.Room, "queue": entry.Queue, "key": entry.Key})
}
