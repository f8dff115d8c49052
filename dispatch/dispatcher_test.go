package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	body     []byte
}

type recordingPublisher struct {
	messages []published
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange string, key string, body []byte) error {
	if p.err != nil {
		return p.err
	}

	p.messages = append(p.messages, published{exchange, key, body})
	return nil
}

func TestDispatchRoundTrip(t *testing.T) {
	publisher := &recordingPublisher{}
	d := New(publisher, "relaycast")

	session := mocks.NewSession("app1", "client-1").Reduce()
	latency := common.NewLatencyLog(time.Now())

	handle := d.To("app1:chat")
	assert.Equal(t, "app1.chat", handle.Key())

	first, err := handle.Dispatch(context.Background(), "msg", json.RawMessage(`{"text":"hi"}`), session, latency)
	require.NoError(t, err)

	second, err := handle.Dispatch(context.Background(), "msg", json.RawMessage(`{"text":"hi"}`), session, latency)
	require.NoError(t, err)

	require.Len(t, publisher.messages, 2)

	msg := publisher.messages[0]
	assert.Equal(t, "relaycast", msg.exchange)
	assert.Equal(t, "app1.chat", msg.key)

	assert.NotEmpty(t, first.RequestID)
	assert.NotEqual(t, first.RequestID, second.RequestID)

	t.Run("Wire format", func(t *testing.T) {
		decoded, err := common.EnvelopeFromJSON(msg.body)
		require.NoError(t, err)

		assert.Equal(t, first.RequestID, decoded.RequestID)
		assert.Equal(t, "app1:chat", decoded.NspRoomID)
		assert.Equal(t, "app1:chat::msg", decoded.Event)
		assert.JSONEq(t, `{"text":"hi"}`, string(decoded.Data.Body))
		assert.Equal(t, "msg", decoded.Data.Event)
		assert.Equal(t, "client-1", *decoded.Data.Sender.ClientID)
		assert.InDelta(t, time.Now().UnixMilli(), decoded.Data.Timestamp, 5000)
		assert.False(t, decoded.IsGlobal())

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(msg.body, &raw))

		assert.NotContains(t, raw, "global")

		var sessionFields map[string]interface{}
		require.NoError(t, json.Unmarshal(raw["session"], &sessionFields))

		keys := make([]string, 0)
		for k := range sessionFields {
			keys = append(keys, k)
		}

		assert.ElementsMatch(t, []string{"appPid", "keyId", "uid", "clientId", "connectionId", "socketId"}, keys)
	})
}

func TestDispatchGlobal(t *testing.T) {
	publisher := &recordingPublisher{}
	d := New(publisher, "relaycast", WithInstanceID("node-1"))

	envelope, err := d.To("app1:chat").Global().Dispatch(context.Background(), "announce", nil, nil, common.LatencyLog{})
	require.NoError(t, err)

	assert.True(t, envelope.IsGlobal())
	assert.Equal(t, "node-1", envelope.Session.InstanceID)
	assert.Equal(t, "null", string(envelope.Data.Body))
	assert.Nil(t, envelope.Data.Sender.ClientID)

	decoded, err := common.EnvelopeFromJSON(publisher.messages[0].body)
	require.NoError(t, err)
	assert.True(t, decoded.IsGlobal())
}

func TestDispatchWithRequestID(t *testing.T) {
	publisher := &recordingPublisher{}
	d := New(publisher, "relaycast")

	envelope, err := d.To("app1:chat").WithRequestID("req-42").Dispatch(context.Background(), "msg", json.RawMessage(`1`), nil, common.LatencyLog{})
	require.NoError(t, err)

	assert.Equal(t, "req-42", envelope.RequestID)
	assert.Contains(t, string(publisher.messages[0].body), `"requestId":"req-42"`)
}

func TestDispatchFailure(t *testing.T) {
	registry := metrics.NewMetrics(nil, 10)

	client := mocks.NewClient(t)
	client.On("Publish", mock.Anything, "relaycast", "app1.chat", mock.Anything).Return(errors.New("channel closed"))

	d := New(client, "relaycast", WithInstrumenter(registry))

	_, err := d.Dispatch(context.Background(), "app1:chat", "msg", json.RawMessage(`{}`), nil, common.LatencyLog{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.Equal(t, uint64(1), registry.Counter("dispatch_failures_total").Value())
	assert.Equal(t, uint64(0), registry.Counter("dispatch_total").Value())
}
