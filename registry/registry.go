// Package registry tracks local room membership and topic subscriptions of the instance's sockets
package registry

import (
	"sync"

	"github.com/apex/log"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/routing"
	"github.com/relaycast/relaycast-go/utils"
)

const (
	metricsRooms   = "rooms_num"
	metricsSockets = "sockets_num"

	defaultShards = 16
)

// Socket is a client connection as seen by the registry
type Socket interface {
	ID() string
	Session() *common.Session
	// Send must not block for long: it's called from the broadcast workers
	Send(msg []byte)
}

// Hooks receive room reference count transitions.
// They're invoked while the registry lock is held, so implementations must not block
// and must not call back into the registry.
type Hooks interface {
	SubscriptionCreated(room string)
	SubscriptionDeleted(room string)
}

// Registry keeps per-room local subscriber sets (reference counts) and per-topic socket sets.
type Registry struct {
	// room -> socket id -> socket
	rooms map[string]map[string]Socket
	// topic -> socket id -> socket
	topics map[string]map[string]Socket
	// socket id -> rooms
	socketRooms map[string]map[string]struct{}
	// socket id -> topics
	socketTopics map[string]map[string]struct{}

	mu sync.RWMutex

	hooks Hooks

	// Broadcasts for the same topic go through the same single-worker pool to keep ordering
	shards []*utils.GoPool

	metrics metrics.Instrumenter
	log     *log.Entry
}

type Option func(*Registry)

func WithHooks(h Hooks) Option {
	return func(r *Registry) {
		r.hooks = h
	}
}

func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(r *Registry) {
		r.metrics = i
	}
}

// WithShards sets the number of broadcast workers
func WithShards(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shards = make([]*utils.GoPool, n)
		}
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		rooms:        make(map[string]map[string]Socket),
		topics:       make(map[string]map[string]Socket),
		socketRooms:  make(map[string]map[string]struct{}),
		socketTopics: make(map[string]map[string]struct{}),
		shards:       make([]*utils.GoPool, defaultShards),
		metrics:      metrics.NoopMetrics{},
		log:          log.WithField("context", "registry"),
	}

	for _, opt := range opts {
		opt(r)
	}

	for i := range r.shards {
		r.shards[i] = utils.NewGoPool("broadcast", 1)
	}

	r.metrics.RegisterGauge(metricsRooms, "The number of rooms with local subscribers")
	r.metrics.RegisterGauge(metricsSockets, "The number of sockets joined to at least one room")

	return r
}

// Join adds the socket to the room's local subscribers.
// Returns true if the socket is the room's first local subscriber.
func (r *Registry) Join(socket Socket, room string) bool {
	sid := socket.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[string]Socket)
	}

	if _, ok := r.rooms[room][sid]; ok {
		return false
	}

	r.rooms[room][sid] = socket

	if _, ok := r.socketRooms[sid]; !ok {
		r.socketRooms[sid] = make(map[string]struct{})
	}

	r.socketRooms[sid][room] = struct{}{}

	first := len(r.rooms[room]) == 1

	if first {
		r.log.WithField("room", room).Debug("First local subscriber joined")

		if r.hooks != nil {
			r.hooks.SubscriptionCreated(room)
		}
	}

	r.updateGauges()

	return first
}

// Leave removes the socket from the room's local subscribers.
// Returns true if the socket was the room's last local subscriber.
func (r *Registry) Leave(socket Socket, room string) bool {
	sid := socket.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room][sid]; !ok {
		return false
	}

	delete(r.rooms[room], sid)
	delete(r.socketRooms[sid], room)

	if len(r.socketRooms[sid]) == 0 {
		delete(r.socketRooms, sid)
	}

	last := len(r.rooms[room]) == 0

	if last {
		delete(r.rooms, room)

		r.log.WithField("room", room).Debug("Last local subscriber left")

		if r.hooks != nil {
			r.hooks.SubscriptionDeleted(room)
		}
	}

	r.updateGauges()

	return last
}

// Subscribe adds the socket to the topic. Idempotent
func (r *Registry) Subscribe(socket Socket, topic string) {
	sid := socket.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[topic]; !ok {
		r.topics[topic] = make(map[string]Socket)
	}

	r.topics[topic][sid] = socket

	if _, ok := r.socketTopics[sid]; !ok {
		r.socketTopics[sid] = make(map[string]struct{})
	}

	r.socketTopics[sid][topic] = struct{}{}
}

// Unsubscribe removes the socket from the topic. Idempotent
func (r *Registry) Unsubscribe(socket Socket, topic string) {
	sid := socket.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[topic][sid]; !ok {
		return
	}

	delete(r.topics[topic], sid)

	if len(r.topics[topic]) == 0 {
		delete(r.topics, topic)
	}

	delete(r.socketTopics[sid], topic)

	if len(r.socketTopics[sid]) == 0 {
		delete(r.socketTopics, sid)
	}
}

// Subscribers returns the number of local subscribers of the room
func (r *Registry) Subscribers(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}

// TopicSubscribers returns the number of sockets subscribed to the topic
func (r *Registry) TopicSubscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics[topic])
}

// HasSubscriber returns true if the socket has joined the room
func (r *Registry) HasSubscriber(room string, socket Socket) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[room][socket.ID()]
	return ok
}

// Rooms returns the rooms the socket has joined
func (r *Registry) Rooms(socket Socket) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return utils.SortedKeys(r.socketRooms[socket.ID()])
}

// Topics returns the topics the socket is subscribed to
func (r *Registry) Topics(socket Socket) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return utils.SortedKeys(r.socketTopics[socket.ID()])
}

// Size returns the number of rooms with local subscribers
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// Broadcast sends the payload to every socket subscribed to the topic.
// Returns the number of recipients. Delivery happens asynchronously.
func (r *Registry) Broadcast(topic string, payload []byte) int {
	r.mu.RLock()
	subscribers := r.topics[topic]

	if len(subscribers) == 0 {
		r.mu.RUnlock()
		r.log.WithField("topic", topic).Debug("No local subscribers")
		return 0
	}

	recipients := make([]Socket, 0, len(subscribers))

	for _, socket := range subscribers {
		recipients = append(recipients, socket)
	}
	r.mu.RUnlock()

	r.shards[routing.ShardIndex(topic, len(r.shards))].Schedule(func() {
		for _, socket := range recipients {
			socket.Send(payload)
		}
	})

	return len(recipients)
}

func (r *Registry) updateGauges() {
	r.metrics.GaugeSet(metricsRooms, uint64(len(r.rooms)))
	r.metrics.GaugeSet(metricsSockets, uint64(len(r.socketRooms)))
}
