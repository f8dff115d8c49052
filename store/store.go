// Package store contains the external collaborators of the gateway:
// the credential store (API key secrets and permissions) and the presence,
// history and subscription stores.
package store

import (
	"context"
	"encoding/json"

	"github.com/relaycast/relaycast-go/common"
)

// CredentialPool hands out pooled credential store connections.
// Every acquired connection must be released.
//
//go:generate mockery --name CredentialPool --output "../mocks" --outpkg mocks
type CredentialPool interface {
	Acquire(ctx context.Context) (CredentialConn, error)
}

// CredentialConn resolves API keys. Unknown keys result in common.ErrNotFound errors.
//
//go:generate mockery --name CredentialConn --output "../mocks" --outpkg mocks
type CredentialConn interface {
	SecretKey(ctx context.Context, tenantID string, keyID string) (string, error)
	Permissions(ctx context.Context, tenantID string, keyID string) (common.Permissions, error)
	Release()
}

// Member is an active room member
type Member struct {
	UID       string           `json:"uid"`
	ClientID  string           `json:"clientId"`
	Data      json.RawMessage  `json:"data,omitempty"`
	User      *common.AuthUser `json:"user,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// PresenceStore keeps active room members
//
//go:generate mockery --name PresenceStore --output "../mocks" --outpkg mocks
type PresenceStore interface {
	AddMember(ctx context.Context, nspRoomID string, member *Member) error
	// RemoveMember returns false if there was no such member
	RemoveMember(ctx context.Context, nspRoomID string, uid string) (bool, error)
	Members(ctx context.Context, nspRoomID string) ([]*Member, error)
}

// HistoryStore keeps recent room messages
//
//go:generate mockery --name HistoryStore --output "../mocks" --outpkg mocks
type HistoryStore interface {
	AppendMessage(ctx context.Context, nspRoomID string, msg *common.Message) error
	// Messages returns up to limit messages published at or after since (ms), oldest first
	Messages(ctx context.Context, nspRoomID string, since int64, limit int) ([]*common.Message, error)
}

// SubscriptionStore records per-connection event subscriptions, so they can be cleaned up on leave
//
//go:generate mockery --name SubscriptionStore --output "../mocks" --outpkg mocks
type SubscriptionStore interface {
	AddSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error
	RemoveSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error
	// UnbindAll removes every subscription of the connection within the room namespace and returns the removed topics
	UnbindAll(ctx context.Context, connectionID string, nspRoomID string, namespace string) ([]string, error)
}

// MemberFromSession builds a room member for the session
func MemberFromSession(session *common.Session, data json.RawMessage, ts int64) *Member {
	var clientID string

	if sender := session.Reduce().Sender(); sender.ClientID != nil {
		clientID = *sender.ClientID
	}

	return &Member{
		UID:       session.UID,
		ClientID:  clientID,
		Data:      data,
		User:      session.User,
		Timestamp: ts,
	}
}
