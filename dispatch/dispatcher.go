// Package dispatch builds room message envelopes and publishes them to the exchange
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	nanoid "github.com/matoous/go-nanoid"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/routing"
)

const (
	metricsDispatched     = "dispatch_total"
	metricsDispatchFailed = "dispatch_failures_total"
)

// Publisher is the publishing part of the broker client
type Publisher interface {
	Publish(ctx context.Context, exchange string, key string, body []byte) error
}

type Dispatcher struct {
	publisher  Publisher
	exchange   string
	instanceID string

	metrics metrics.Instrumenter
	log     *log.Entry
}

type Option func(*Dispatcher)

func WithInstrumenter(i metrics.Instrumenter) Option {
	return func(d *Dispatcher) {
		d.metrics = i
	}
}

// WithInstanceID stamps envelopes with the publishing instance id
func WithInstanceID(id string) Option {
	return func(d *Dispatcher) {
		d.instanceID = id
	}
}

func New(publisher Publisher, exchange string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		exchange:  exchange,
		metrics:   metrics.NoopMetrics{},
		log:       log.WithField("context", "dispatch"),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.metrics.RegisterCounter(metricsDispatched, "The total number of messages published to the exchange")
	d.metrics.RegisterCounter(metricsDispatchFailed, "The total number of failed publish attempts")

	return d
}

// Handle dispatches messages to a single room
type Handle struct {
	dispatcher *Dispatcher
	nspRoomID  string
	key        string
	requestID  string
	global     bool
}

// To returns a dispatch handle for the namespaced room
func (d *Dispatcher) To(nspRoomID string) Handle {
	return Handle{dispatcher: d, nspRoomID: nspRoomID, key: routing.PublishKey(nspRoomID)}
}

// Dispatch is a shortcut for To(nspRoomID).Dispatch(...)
func (d *Dispatcher) Dispatch(ctx context.Context, nspRoomID string, event string, body json.RawMessage, session *common.ReducedSession, latency common.LatencyLog) (*common.Envelope, error) {
	return d.To(nspRoomID).Dispatch(ctx, event, body, session, latency)
}

// Global returns a handle delivering to every socket joined to the room,
// regardless of their event subscriptions
func (h Handle) Global() Handle {
	h.global = true
	return h
}

// WithRequestID returns a handle publishing envelopes with the specified request id
func (h Handle) WithRequestID(id string) Handle {
	h.requestID = id
	return h
}

// Key returns the routing key messages are published with
func (h Handle) Key() string {
	return h.key
}

// Dispatch publishes the event to the room and returns the published envelope.
// Publish failures are returned to the caller.
func (h Handle) Dispatch(ctx context.Context, event string, body json.RawMessage, session *common.ReducedSession, latency common.LatencyLog) (*common.Envelope, error) {
	d := h.dispatcher

	envelope, err := d.build(h, event, body, session, latency)

	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(envelope)

	if err != nil {
		return nil, errorx.Decorate(err, "failed to encode envelope")
	}

	ctxLog := d.log.WithFields(log.Fields{"room": h.nspRoomID, "event": event, "request_id": envelope.RequestID})

	ctxLog.Debug("Dispatching message")

	if err := d.publisher.Publish(ctx, d.exchange, h.key, payload); err != nil {
		d.metrics.CounterIncrement(metricsDispatchFailed)
		ctxLog.Errorf("Failed to publish message: %v", err)

		return nil, errorx.Decorate(err, "failed to publish to %s", h.key)
	}

	d.metrics.CounterIncrement(metricsDispatched)

	return envelope, nil
}

// NewRequestID generates a unique request id
func NewRequestID() (string, error) {
	id, err := nanoid.Nanoid()

	if err != nil {
		return "", errorx.Decorate(err, "failed to generate request id")
	}

	return id, nil
}

func (d *Dispatcher) build(h Handle, event string, body json.RawMessage, session *common.ReducedSession, latency common.LatencyLog) (*common.Envelope, error) {
	requestID := h.requestID

	if requestID == "" {
		id, err := NewRequestID()

		if err != nil {
			return nil, err
		}

		requestID = id
	}

	if session == nil {
		session = &common.ReducedSession{}
	}

	reduced := *session

	if d.instanceID != "" {
		reduced.InstanceID = d.instanceID
	}

	if len(body) == 0 {
		body = json.RawMessage("null")
	}

	envelope := &common.Envelope{
		RequestID: requestID,
		NspRoomID: h.nspRoomID,
		Event:     common.NspEvent(h.nspRoomID, event),
		Data: &common.Message{
			Body:      body,
			Sender:    reduced.Sender(),
			Timestamp: time.Now().UnixMilli(),
			Event:     event,
		},
		Session:    &reduced,
		LatencyLog: latency,
	}

	if h.global {
		global := true
		envelope.Global = &global
	}

	return envelope, nil
}
