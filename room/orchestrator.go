// Package room ties room membership changes to local registrations, presence, subscriptions and metrics,
// and delivers envelopes consumed from the shard queues to local sockets.
package room

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/dispatch"
	"github.com/relaycast/relaycast-go/guard"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/registry"
	"github.com/relaycast/relaycast-go/routing"
	"github.com/relaycast/relaycast-go/store"
	"golang.org/x/sync/errgroup"
)

const (
	metricsDeliveries       = "deliveries_total"
	metricsDeliveriesDrop   = "deliveries_dropped_total"
	metricsDeliveriesFailed = "deliveries_failures_total"
	metricsDeliveriesSkip   = "deliveries_skipped_total"

	presenceJoinEvent  = "join"
	presenceLeaveEvent = "leave"
)

// Delivery is the frame sent to a local socket for every consumed envelope
type Delivery struct {
	ID         string            `json:"id"`
	Room       string            `json:"room"`
	Event      string            `json:"event"`
	Data       *common.Message   `json:"data"`
	LatencyLog common.LatencyLog `json:"latencyLog"`
}

type Orchestrator struct {
	registry      *registry.Registry
	dispatcher    *dispatch.Dispatcher
	presence      store.PresenceStore
	history       store.HistoryStore
	subscriptions store.SubscriptionStore
	sink          metrics.Sink
	codec         *routing.Codec

	metrics metrics.Instrumenter
	log     *log.Entry
}

type Option func(*Orchestrator)

func WithPresence(s store.PresenceStore) Option {
	return func(o *Orchestrator) {
		o.presence = s
	}
}

func WithHistory(s store.HistoryStore) Option {
	return func(o *Orchestrator) {
		o.history = s
	}
}

func WithSubscriptions(s store.SubscriptionStore) Option {
	return func(o *Orchestrator) {
		o.subscriptions = s
	}
}

// WithCodec makes the orchestrator fan out an envelope only when it is consumed from the room's own shard queue
func WithCodec(c *routing.Codec) Option {
	return func(o *Orchestrator) {
		o.codec = c
	}
}

func WithSink(s metrics.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(o *Orchestrator) {
		o.metrics = i
	}
}

// New builds an orchestrator. Stores default to in-memory ones.
func New(reg *registry.Registry, d *dispatch.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   reg,
		dispatcher: d,
		sink:       metrics.MultiSink{},
		metrics:    metrics.NoopMetrics{},
		log:        log.WithField("context", "room"),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.presence == nil || o.history == nil || o.subscriptions == nil {
		mem := store.NewMemory(store.NewConfig().HistoryLimit)

		if o.presence == nil {
			o.presence = mem
		}

		if o.history == nil {
			o.history = mem
		}

		if o.subscriptions == nil {
			o.subscriptions = mem
		}
	}

	o.metrics.RegisterCounter(metricsDeliveries, "The total number of envelopes delivered to local sockets")
	o.metrics.RegisterCounter(metricsDeliveriesDrop, "The total number of consumed envelopes without local subscribers")
	o.metrics.RegisterCounter(metricsDeliveriesFailed, "The total number of malformed consumed envelopes")
	o.metrics.RegisterCounter(metricsDeliveriesSkip, "The total number of envelopes consumed from a shard queue other than the room's one")

	return o
}

func (o *Orchestrator) socketLog(socket registry.Socket, nspRoomID string) *log.Entry {
	return o.log.WithFields(log.Fields{"sid": socket.ID(), "room": nspRoomID})
}

// Join registers the socket as a local subscriber of the room and of its routing key.
func (o *Orchestrator) Join(ctx context.Context, socket registry.Socket, roomID string) (string, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)
	ctxLog := o.socketLog(socket, nspRoomID)

	if err := guard.CheckPermission(roomID, common.ActionSubscribe, session.Permissions); err != nil {
		ctxLog.Debugf("Join rejected: %v", err)
		return nspRoomID, err
	}

	var g errgroup.Group

	g.Go(func() error {
		o.registry.Join(socket, nspRoomID)
		return nil
	})

	g.Go(func() error {
		o.registry.Subscribe(socket, routing.PublishKey(nspRoomID))
		return nil
	})

	g.Go(func() error {
		if err := o.sink.RecordJoin(ctx, session, nspRoomID); err != nil {
			ctxLog.Errorf("Failed to record join: %v", err)
			return errorx.Decorate(err, "failed to record join")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nspRoomID, err
	}

	ctxLog.Debug("Joined")

	return nspRoomID, nil
}

// Leave removes the socket from the room, its presence set and every subscription namespace.
func (o *Orchestrator) Leave(ctx context.Context, socket registry.Socket, roomID string) (string, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)

	return nspRoomID, o.leave(ctx, socket, nspRoomID)
}

func (o *Orchestrator) leave(ctx context.Context, socket registry.Socket, nspRoomID string) error {
	session := socket.Session()
	ctxLog := o.socketLog(socket, nspRoomID)

	var g errgroup.Group

	g.Go(func() error {
		o.registry.Leave(socket, nspRoomID)
		return nil
	})

	g.Go(func() error {
		o.registry.Unsubscribe(socket, routing.PublishKey(nspRoomID))
		return nil
	})

	g.Go(func() error {
		if err := o.removeMember(ctx, session, nspRoomID); err != nil {
			ctxLog.Errorf("Failed to remove presence member: %v", err)
			return err
		}
		return nil
	})

	// Local topics are dropped independently of the subscriptions store
	g.Go(func() error {
		prefix := nspRoomID + common.EventSeparator

		for _, topic := range o.registry.Topics(socket) {
			if strings.HasPrefix(topic, prefix) {
				o.registry.Unsubscribe(socket, topic)
			}
		}
		return nil
	})

	for _, namespace := range common.Namespaces {
		g.Go(func() error {
			_, err := o.subscriptions.UnbindAll(ctx, session.ConnectionID, nspRoomID, namespace)

			if err != nil {
				ctxLog.WithField("namespace", namespace).Errorf("Failed to unbind subscriptions: %v", err)
				return errorx.Decorate(err, "failed to unbind %s", namespace)
			}

			return nil
		})
	}

	g.Go(func() error {
		if err := o.sink.RecordLeave(ctx, session, nspRoomID); err != nil {
			ctxLog.Errorf("Failed to record leave: %v", err)
			return errorx.Decorate(err, "failed to record leave")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	ctxLog.Debug("Left")

	return nil
}

func (o *Orchestrator) removeMember(ctx context.Context, session *common.Session, nspRoomID string) error {
	if session.UID == "" {
		return nil
	}

	removed, err := o.presence.RemoveMember(ctx, nspRoomID, session.UID)

	if err != nil {
		return errorx.Decorate(err, "failed to remove member")
	}

	if !removed {
		return nil
	}

	member := store.MemberFromSession(session, nil, time.Now().UnixMilli())

	return o.dispatchPresence(ctx, session, nspRoomID, presenceLeaveEvent, member)
}

func (o *Orchestrator) dispatchPresence(ctx context.Context, session *common.Session, nspRoomID string, event string, member *store.Member) error {
	body, err := json.Marshal(member)

	if err != nil {
		return err
	}

	_, err = o.dispatcher.Dispatch(
		ctx,
		nspRoomID,
		common.NamespacedEvent(common.NamespacePresence, event),
		body,
		session.Reduce(),
		common.NewLatencyLog(time.Now()),
	)

	return err
}

// Publish dispatches the event to the room and appends the message to the room history
func (o *Orchestrator) Publish(ctx context.Context, socket registry.Socket, roomID string, event string, body json.RawMessage) (*common.Message, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)
	ctxLog := o.socketLog(socket, nspRoomID).WithField("event", event)

	if err := guard.CheckPermission(roomID, common.ActionPublish, session.Permissions); err != nil {
		ctxLog.Debugf("Publish rejected: %v", err)
		return nil, err
	}

	if event == "" || common.IsReservedEvent(event) {
		return nil, common.ErrValidation.New("invalid event name: %q", event)
	}

	envelope, err := o.dispatcher.To(nspRoomID).Dispatch(ctx, event, body, session.Reduce(), common.NewLatencyLog(time.Now()))

	if err != nil {
		return nil, err
	}

	if err := o.history.AppendMessage(ctx, nspRoomID, envelope.Data); err != nil {
		ctxLog.Errorf("Failed to append history message: %v", err)
		return envelope.Data, errorx.Decorate(err, "failed to append history message")
	}

	return envelope.Data, nil
}

func namespaceAction(namespace string) string {
	switch namespace {
	case common.NamespacePresence:
		return common.ActionPresence
	case common.NamespaceMetrics:
		return common.ActionMetrics
	default:
		return common.ActionSubscribe
	}
}

func (o *Orchestrator) ensureJoined(socket registry.Socket, roomID string, nspRoomID string) error {
	if !o.registry.HasSubscriber(nspRoomID, socket) {
		return common.ErrValidation.New("not joined to room %s", roomID)
	}

	return nil
}

// Subscribe subscribes the joined socket to the room event within the namespace
func (o *Orchestrator) Subscribe(ctx context.Context, socket registry.Socket, roomID string, event string, namespace string) (string, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)

	if namespace == "" {
		namespace = common.NamespaceSubscriptions
	}

	if err := guard.CheckPermission(roomID, namespaceAction(namespace), session.Permissions); err != nil {
		return "", err
	}

	if err := o.ensureJoined(socket, roomID, nspRoomID); err != nil {
		return "", err
	}

	topic := common.SubscriptionTopic(nspRoomID, namespace, event)

	if err := o.subscriptions.AddSubscription(ctx, session.ConnectionID, nspRoomID, namespace, topic); err != nil {
		o.socketLog(socket, nspRoomID).Errorf("Failed to store subscription %s: %v", topic, err)
		return "", errorx.Decorate(err, "failed to subscribe")
	}

	o.registry.Subscribe(socket, topic)

	return topic, nil
}

// Unsubscribe is the inverse of Subscribe
func (o *Orchestrator) Unsubscribe(ctx context.Context, socket registry.Socket, roomID string, event string, namespace string) (string, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)

	if namespace == "" {
		namespace = common.NamespaceSubscriptions
	}

	topic := common.SubscriptionTopic(nspRoomID, namespace, event)

	o.registry.Unsubscribe(socket, topic)

	if err := o.subscriptions.RemoveSubscription(ctx, session.ConnectionID, nspRoomID, namespace, topic); err != nil {
		o.socketLog(socket, nspRoomID).Errorf("Failed to remove subscription %s: %v", topic, err)
		return topic, errorx.Decorate(err, "failed to unsubscribe")
	}

	return topic, nil
}

// PresenceJoin adds the joined socket's user to the room presence set and notifies room members
func (o *Orchestrator) PresenceJoin(ctx context.Context, socket registry.Socket, roomID string, data json.RawMessage) (*store.Member, error) {
	session := socket.Session()
	nspRoomID := common.NspRoomID(session.TenantID, roomID)

	if err := guard.CheckPermission(roomID, common.ActionPresence, session.Permissions); err != nil {
		return nil, err
	}

	if err := o.ensureJoined(socket, roomID, nspRoomID); err != nil {
		return nil, err
	}

	if session.UID == "" {
		return nil, common.ErrValidation.New("anonymous sessions can't join presence")
	}

	member := store.MemberFromSession(session, data, time.Now().UnixMilli())

	if err := o.presence.AddMember(ctx, nspRoomID, member); err != nil {
		o.socketLog(socket, nspRoomID).Errorf("Failed to add presence member: %v", err)
		return nil, errorx.Decorate(err, "failed to add member")
	}

	if err := o.dispatchPresence(ctx, session, nspRoomID, presenceJoinEvent, member); err != nil {
		return member, err
	}

	return member, nil
}

// Members returns the room presence set
func (o *Orchestrator) Members(ctx context.Context, socket registry.Socket, roomID string) ([]*store.Member, error) {
	session := socket.Session()

	if err := guard.CheckPermission(roomID, common.ActionPresence, session.Permissions); err != nil {
		return nil, err
	}

	return o.presence.Members(ctx, common.NspRoomID(session.TenantID, roomID))
}

// History returns recent room messages published at or after since (ms)
func (o *Orchestrator) History(ctx context.Context, socket registry.Socket, roomID string, since int64, limit int) ([]*common.Message, error) {
	session := socket.Session()

	if err := guard.CheckPermission(roomID, common.ActionHistory, session.Permissions); err != nil {
		return nil, err
	}

	return o.history.Messages(ctx, common.NspRoomID(session.TenantID, roomID), since, limit)
}

// Disconnect leaves every room the socket has joined and drops its remaining topics
func (o *Orchestrator) Disconnect(ctx context.Context, socket registry.Socket) error {
	var first error

	for _, nspRoomID := range o.registry.Rooms(socket) {
		if err := o.leave(ctx, socket, nspRoomID); err != nil && first == nil {
			first = err
		}
	}

	for _, topic := range o.registry.Topics(socket) {
		o.registry.Unsubscribe(socket, topic)
	}

	return first
}

// HandleDelivery fans a consumed envelope out to local sockets.
// Global envelopes go to every socket joined to the room, others to the sockets subscribed to the event.
func (o *Orchestrator) HandleDelivery(queue string, body []byte) {
	envelope, err := common.EnvelopeFromJSON(body)

	if err != nil {
		o.metrics.CounterIncrement(metricsDeliveriesFailed)
		o.log.WithField("queue", queue).Warnf("Failed to decode envelope: %v", err)
		return
	}

	ctxLog := o.log.WithFields(log.Fields{"queue": queue, "room": envelope.NspRoomID, "request_id": envelope.RequestID})

	// A binding key also matches the rooms nested under it, which may live on other shards
	if o.codec != nil && o.codec.Entry(envelope.NspRoomID).Queue != queue {
		o.metrics.CounterIncrement(metricsDeliveriesSkip)
		ctxLog.Debug("Consumed from a foreign shard queue, skipping")
		return
	}

	// Binding keys are wildcards, so a queue may receive envelopes of rooms nobody joined here
	if o.registry.Subscribers(envelope.NspRoomID) == 0 {
		o.metrics.CounterIncrement(metricsDeliveriesDrop)
		ctxLog.Debug("No local subscribers, dropping")
		return
	}

	frame := Delivery{
		ID:         envelope.RequestID,
		Room:       roomIDOf(envelope.NspRoomID),
		Data:       envelope.Data,
		LatencyLog: envelope.LatencyLog,
	}

	_, frame.Event = common.SplitNspEvent(envelope.Event)

	payload, err := json.Marshal(&frame)

	if err != nil {
		o.metrics.CounterIncrement(metricsDeliveriesFailed)
		ctxLog.Errorf("Failed to encode delivery: %v", err)
		return
	}

	topic := envelope.Event

	if envelope.IsGlobal() {
		topic = routing.PublishKey(envelope.NspRoomID)
	}

	n := o.registry.Broadcast(topic, payload)

	o.metrics.CounterAdd(metricsDeliveries, uint64(n))

	ctxLog.Debugf("Delivered to %d sockets", n)
}

func roomIDOf(nspRoomID string) string {
	if _, roomID, ok := strings.Cut(nspRoomID, common.RoomScopeSeparator); ok {
		return roomID
	}

	return nspRoomID
}
