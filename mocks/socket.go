package mocks

import (
	"errors"
	"time"

	"github.com/relaycast/relaycast-go/common"
)

// MockSocket implements registry.Socket and collects sent messages
type MockSocket struct {
	id      string
	session *common.Session
	send    chan []byte
}

// NewMockSocket builds a socket for the session; the socket id defaults to the session's one
func NewMockSocket(session *common.Session) *MockSocket {
	id := session.SocketID

	if id == "" {
		id = session.ConnectionID
	}

	return &MockSocket{id: id, session: session, send: make(chan []byte, 100)}
}

func (s *MockSocket) ID() string {
	return s.id
}

func (s *MockSocket) Session() *common.Session {
	return s.session
}

func (s *MockSocket) Send(msg []byte) {
	s.send <- msg
}

// Read returns the next sent message or fails after 100ms
func (s *MockSocket) Read() ([]byte, error) {
	select {
	case <-time.After(100 * time.Millisecond):
		return nil, errors.New("socket hasn't received any messages")
	case msg := <-s.send:
		return msg, nil
	}
}

// Pending returns the number of sent messages not read yet
func (s *MockSocket) Pending() int {
	return len(s.send)
}

// NewSession returns a session of the tenant's client with all permissions granted
func NewSession(tenantID string, clientID string) *common.Session {
	return &common.Session{
		UID:          "uid-" + clientID,
		TenantID:     tenantID,
		KeyID:        "key-1",
		ClientID:     tenantID + ":" + clientID,
		ConnectionID: "conn-" + clientID,
		SocketID:     "sock-" + clientID,
		Permissions:  common.Permissions{"*": {"*"}},
	}
}
