// Package common contains structs and helpers shared between the gateway components
package common

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// Separates the tenant scope from the room name in a namespaced room id
	RoomScopeSeparator = ":"
	// Separates the namespaced room id from the event name
	EventSeparator = "::"
	// Prefix of namespaced (presence, metrics) events
	ReservedEventPrefix = "$:"
)

// Subscription namespaces a connection can hold pending subscriptions in
const (
	NamespaceSubscriptions = "subscriptions"
	NamespacePresence      = "presence"
	NamespaceMetrics       = "metrics"
)

// Namespaces lists every namespace cleaned up when a connection leaves a room
var Namespaces = []string{NamespaceSubscriptions, NamespacePresence, NamespaceMetrics}

// NspRoomID returns the tenant-scoped room identifier
func NspRoomID(tenantID string, roomID string) string {
	return tenantID + RoomScopeSeparator + roomID
}

// NspEvent returns the namespaced event name for the room
func NspEvent(nspRoomID string, event string) string {
	return nspRoomID + EventSeparator + event
}

// SplitNspEvent is the inverse of NspEvent
func SplitNspEvent(nspEvent string) (nspRoomID string, event string) {
	idx := strings.Index(nspEvent, EventSeparator)

	if idx < 0 {
		return nspEvent, ""
	}

	return nspEvent[:idx], nspEvent[idx+len(EventSeparator):]
}

// NamespacedEvent returns the event name within the subscription namespace ("$:presence:join").
// Plain event subscriptions keep the event as is.
func NamespacedEvent(namespace string, event string) string {
	if namespace == "" || namespace == NamespaceSubscriptions {
		return event
	}

	return ReservedEventPrefix + namespace + ":" + event
}

// IsReservedEvent returns true for events only the gateway itself may publish
func IsReservedEvent(event string) bool {
	return strings.HasPrefix(event, ReservedEventPrefix)
}

// SubscriptionTopic returns the local topic name for the event subscription within the namespace
func SubscriptionTopic(nspRoomID string, namespace string, event string) string {
	return NspEvent(nspRoomID, NamespacedEvent(namespace, event))
}

// Sender identifies the connection a message has been published from.
// Fields are null for messages published over the signed HTTP endpoint.
type Sender struct {
	ClientID     *string `json:"clientId"`
	ConnectionID *string `json:"connectionId"`
}

// Message is a room message as seen by subscribers and stored in history
type Message struct {
	Body      json.RawMessage `json:"body"`
	Sender    Sender          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
	Event     string          `json:"event"`
}

// LatencyLog carries the timestamps used to compute the end-to-end delivery latency
type LatencyLog struct {
	CreatedAt  string `json:"createdAt"`
	ReceivedAt string `json:"receivedAt"`
}

const latencyTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// NewLatencyLog builds a latency log for an event created at the specified time
// and received now
func NewLatencyLog(createdAt time.Time) LatencyLog {
	return LatencyLog{
		CreatedAt:  createdAt.UTC().Format(latencyTimeFormat),
		ReceivedAt: time.Now().UTC().Format(latencyTimeFormat),
	}
}

// Envelope is the unit published to the exchange and consumed by every subscribed instance.
// Field names are a wire contract between instances.
type Envelope struct {
	RequestID  string          `json:"requestId"`
	NspRoomID  string          `json:"nspRoomId"`
	Event      string          `json:"event"`
	Data       *Message        `json:"data"`
	Session    *ReducedSession `json:"session"`
	LatencyLog LatencyLog      `json:"latencyLog"`
	Global     *bool           `json:"global,omitempty"`
}

// IsGlobal returns true if the envelope targets every socket of the room
func (e *Envelope) IsGlobal() bool {
	return e.Global != nil && *e.Global
}

// EnvelopeFromJSON decodes an envelope consumed from a shard queue
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var envelope Envelope

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	if envelope.NspRoomID == "" {
		return nil, ErrValidation.New("envelope has no room")
	}

	return &envelope, nil
}
