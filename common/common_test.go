package common

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNspHelpers(t *testing.T) {
	room := NspRoomID("app1", "chat")
	assert.Equal(t, "app1:chat", room)

	event := NspEvent(room, "msg")
	assert.Equal(t, "app1:chat::msg", event)

	r, e := SplitNspEvent(event)
	assert.Equal(t, "app1:chat", r)
	assert.Equal(t, "msg", e)

	assert.Equal(t, "app1:chat::msg", SubscriptionTopic(room, NamespaceSubscriptions, "msg"))
	assert.Equal(t, "app1:chat::$:presence:join", SubscriptionTopic(room, NamespacePresence, "join"))

	assert.Equal(t, "$:metrics:leave", NamespacedEvent(NamespaceMetrics, "leave"))
	assert.True(t, IsReservedEvent("$:presence:join"))
	assert.False(t, IsReservedEvent("msg"))
}

func TestReduceSession(t *testing.T) {
	session := &Session{
		UID:          "u1",
		TenantID:     "app1",
		OrgID:        "org",
		KeyID:        "key",
		ClientID:     "app1:client-42",
		Permissions:  Permissions{"*": {"*"}},
		ConnectionID: "conn",
		SocketID:     "sock",
	}

	reduced := session.Reduce()

	encoded, err := json.Marshal(reduced)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &fields))

	assert.ElementsMatch(t,
		[]string{"appPid", "keyId", "uid", "clientId", "connectionId", "socketId"},
		keys(fields),
	)

	t.Run("Sender strips tenant prefix", func(t *testing.T) {
		sender := reduced.Sender()
		require.NotNil(t, sender.ClientID)
		assert.Equal(t, "client-42", *sender.ClientID)
		assert.Equal(t, "conn", *sender.ConnectionID)
	})

	t.Run("Sender keeps only the client segment", func(t *testing.T) {
		sender := (&ReducedSession{ClientID: "app1:client-42:tab-3"}).Sender()
		require.NotNil(t, sender.ClientID)
		assert.Equal(t, "client-42", *sender.ClientID)

		assert.Nil(t, (&ReducedSession{ClientID: "client-42"}).Sender().ClientID)
		assert.Nil(t, (&ReducedSession{ClientID: "app1:"}).Sender().ClientID)
	})

	t.Run("Sender of anonymous publisher", func(t *testing.T) {
		sender := (&ReducedSession{TenantID: "app1"}).Sender()
		assert.Nil(t, sender.ClientID)
		assert.Nil(t, sender.ConnectionID)

		encoded, err := json.Marshal(sender)
		require.NoError(t, err)
		assert.Equal(t, `{"clientId":null,"connectionId":null}`, string(encoded))
	})
}

func TestEnvelopeFromJSON(t *testing.T) {
	t.Run("Without global flag", func(t *testing.T) {
		envelope, err := EnvelopeFromJSON([]byte(`{"requestId":"r","nspRoomId":"app1:chat","event":"app1:chat::msg","data":{"body":{"text":"hi"}}}`))

		require.NoError(t, err)
		assert.False(t, envelope.IsGlobal())
		assert.JSONEq(t, `{"text":"hi"}`, string(envelope.Data.Body))
	})

	t.Run("With global flag", func(t *testing.T) {
		envelope, err := EnvelopeFromJSON([]byte(`{"requestId":"r","nspRoomId":"app1:chat","global":true}`))

		require.NoError(t, err)
		assert.True(t, envelope.IsGlobal())
	})

	t.Run("Without room", func(t *testing.T) {
		_, err := EnvelopeFromJSON([]byte(`{"requestId":"r"}`))
		assert.True(t, errorx.IsOfType(err, ErrValidation))
	})
}

func TestNewErrorResponse(t *testing.T) {
	data := map[string]string{"roomId": "chat"}

	res := NewErrorResponse(ErrValidation.New("timestamp is too old"), data)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "timestamp is too old", res.Message)
	assert.Equal(t, "chat", res.Data["roomId"])

	res = NewErrorResponse(ErrAuthentication.New("signature mismatch"), data)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.NotContains(t, res.Message, "signature")

	res = NewErrorResponse(ErrNotFound.New("unknown key"), data)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, res.Message, NewErrorResponse(ErrAuthentication.New("x"), nil).Message)

	res = NewErrorResponse(ErrForbidden.New("publish is not allowed"), data)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "ForbiddenError", res.Name)

	res = NewErrorResponse(errorx.Decorate(ErrBroker.New("channel closed"), "failed to publish"), data)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.NotContains(t, res.Message, "channel")
}

func keys(m map[string]interface{}) []string {
	res := make([]string, 0, len(m))

	for k := range m {
		res = append(res, k)
	}

	return res
}
