package common

import "strings"

// Permissions maps room patterns (exact room id, "prefix:*" or "*") to the allowed actions
type Permissions map[string][]string

// Actions checked by the permission guard
const (
	ActionSubscribe = "subscribe"
	ActionPublish   = "publish"
	ActionPresence  = "presence"
	ActionMetrics   = "metrics"
	ActionHistory   = "history"
	ActionAll       = "*"
)

// AuthUser is an authenticated user attached to the session
type AuthUser struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Username string `json:"username"`
	OrgID    string `json:"orgId"`
	IsOnline bool   `json:"isOnline"`
}

// Session contains the identity of an authenticated connection.
// It is verified upstream (at connection time) and never leaves the instance as is.
type Session struct {
	UID          string      `json:"uid"`
	TenantID     string      `json:"appPid"`
	OrgID        string      `json:"orgId"`
	KeyID        string      `json:"keyId"`
	ClientID     string      `json:"clientId"`
	Exp          int64       `json:"exp"`
	Timestamp    string      `json:"timestamp"`
	Permissions  Permissions `json:"permissions"`
	Anonymous    bool        `json:"anonymous"`
	ConnectionID string      `json:"connectionId"`
	SocketID     string      `json:"socketId"`
	User         *AuthUser   `json:"user,omitempty"`
}

// ReducedSession is the secret-free identity projection carried by envelopes
type ReducedSession struct {
	TenantID     string    `json:"appPid"`
	KeyID        string    `json:"keyId"`
	UID          string    `json:"uid"`
	ClientID     string    `json:"clientId"`
	ConnectionID string    `json:"connectionId"`
	SocketID     string    `json:"socketId"`
	InstanceID   string    `json:"instanceId,omitempty"`
	User         *AuthUser `json:"user,omitempty"`
}

// Reduce projects the session to its reduced form
func (s *Session) Reduce() *ReducedSession {
	return &ReducedSession{
		TenantID:     s.TenantID,
		KeyID:        s.KeyID,
		UID:          s.UID,
		ClientID:     s.ClientID,
		ConnectionID: s.ConnectionID,
		SocketID:     s.SocketID,
		User:         s.User,
	}
}

// Sender returns the sender projection: the second segment of the scoped client id
// ("tenant:client:..." -> "client") and the connection id.
// Unscoped client ids project to no client.
func (s *ReducedSession) Sender() Sender {
	var sender Sender

	if segments := strings.SplitN(s.ClientID, RoomScopeSeparator, 3); len(segments) > 1 && segments[1] != "" {
		clientID := segments[1]
		sender.ClientID = &clientID
	}

	if s.ConnectionID != "" {
		connectionID := s.ConnectionID
		sender.ConnectionID = &connectionID
	}

	return sender
}
