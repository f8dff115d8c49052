package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaycast/relaycast-go/broker"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/dispatch"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/mocks"
	"github.com/relaycast/relaycast-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "s3Krit"

var now = time.UnixMilli(1700000000000)

type testEnv struct {
	handler     *Handler
	credentials *store.MemoryCredentials
	history     *store.Memory
	deliveries  chan []byte
	metrics     *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		credentials: store.NewMemoryCredentials(store.StaticKey{
			TenantID:    "app1",
			KeyID:       "key1",
			Secret:      secret,
			Permissions: common.Permissions{"chat:*": {common.ActionPublish}},
		}),
		history:    store.NewMemory(10),
		deliveries: make(chan []byte, 10),
		metrics:    metrics.NewMetrics(nil, 10),
	}

	exchange := broker.NewMemoryExchange()
	client := broker.NewMemoryClient(exchange, []string{"node-1-queue-0"}, func(_ string, body []byte) {
		env.deliveries <- body
	})
	require.NoError(t, client.Start(make(chan error)))
	require.NoError(t, client.BindQueue(context.Background(), "relaycast", "node-1-queue-0", "app1.#"))

	config := NewConfig()
	d := dispatch.New(client, "relaycast")

	env.handler = NewHandler(&config, env.credentials, d, env.history, WithClock(func() time.Time { return now }), WithInstrumenter(env.metrics))

	return env
}

func signedRequest(t *testing.T, payload interface{}, key string, sign string) *http.Request {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))

	if key != "" {
		req.Header.Set(PublicKeyHeader, key)
	}

	if sign == "" {
		sign = Sign(secret, body)
	}

	req.Header.Set(SignatureHeader, sign)

	return req
}

func event(roomID string, ts time.Time) *Request {
	return &Request{Event: "msg", RoomID: roomID, Data: json.RawMessage(`{"text":"hi"}`), Timestamp: ts.UnixMilli()}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *common.ErrorResponse {
	var res common.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return &res
}

func TestHandlerSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now.Add(-29*time.Second)), "app1.key1", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, now.Add(-29*time.Second).UnixMilli(), res.Timestamp)

	select {
	case body := <-env.deliveries:
		envelope, err := common.EnvelopeFromJSON(body)
		require.NoError(t, err)

		assert.Equal(t, res.RequestID, envelope.RequestID)
		assert.Equal(t, "app1:chat:general", envelope.NspRoomID)
		assert.Equal(t, "app1:chat:general::msg", envelope.Event)
		assert.Equal(t, "app1", envelope.Session.TenantID)
		assert.Equal(t, "key1", envelope.Session.KeyID)
		assert.Nil(t, envelope.Data.Sender.ClientID)
		assert.Nil(t, envelope.Data.Sender.ConnectionID)
		assert.False(t, envelope.IsGlobal())
	case <-time.After(time.Second):
		t.Fatal("envelope hasn't been published")
	}

	history, err := env.history.Messages(context.Background(), "app1:chat:general", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Equal(t, int64(0), env.credentials.Outstanding())
}

func TestHandlerGlobalEvent(t *testing.T) {
	env := newTestEnv(t)

	req := event("chat:general", now)
	req.Global = true

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedRequest(t, req, "app1.key1", ""))

	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case body := <-env.deliveries:
		envelope, err := common.EnvelopeFromJSON(body)
		require.NoError(t, err)

		assert.True(t, envelope.IsGlobal())
		assert.Equal(t, "app1:chat:general::msg", envelope.Event)
	case <-time.After(time.Second):
		t.Fatal("envelope hasn't been published")
	}
}

func TestHandlerTimestampWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now.Add(-31*time.Second)), "app1.key1", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := decodeError(t, rec)
	assert.Equal(t, "ValidationError", res.Name)
	assert.Equal(t, "chat:general", res.Data["roomId"])
	assert.NotEmpty(t, res.Data["requestId"])

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now.Add(31*time.Second)), "app1.key1", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.deliveries)
	assert.Equal(t, int64(0), env.credentials.Outstanding())
}

type explodingReader struct {
	t *testing.T
}

func (r explodingReader) Read(p []byte) (int, error) {
	r.t.Error("body must not be read")
	return 0, errors.New("unexpected read")
}

func TestHandlerMissingHeaders(t *testing.T) {
	env := newTestEnv(t)

	for _, headers := range []map[string]string{
		{SignatureHeader: "abc"},
		{PublicKeyHeader: "app1.key1"},
		{},
	} {
		req := httptest.NewRequest(http.MethodPost, "/events", explodingReader{t})

		for k, v := range headers {
			req.Header.Set(k, v)
		}

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		res := decodeError(t, rec)
		assert.Equal(t, "Public key and signature headers are required", res.Message)
	}

	assert.Equal(t, int64(0), env.credentials.Outstanding())
	assert.Equal(t, uint64(3), env.metrics.Counter("ingress_failures_total").Value())
}

func TestHandlerAuthentication(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Unknown key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key2", ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Authentication failed", decodeError(t, rec).Message)
	})

	t.Run("Malformed public key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1", ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Signature mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key1", Sign("other", []byte("{}"))))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		res := decodeError(t, rec)
		assert.Equal(t, "AuthenticationError", res.Name)
		assert.Equal(t, "Authentication failed", res.Message)
	})

	assert.Empty(t, env.deliveries)
	assert.Equal(t, int64(0), env.credentials.Outstanding())
}

func TestHandlerForbidden(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, signedRequest(t, event("lobby", now), "app1.key1", ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	res := decodeError(t, rec)
	assert.Equal(t, "ForbiddenError", res.Name)
	assert.Contains(t, res.Message, "lobby")

	assert.Empty(t, env.deliveries)
	assert.Equal(t, int64(0), env.credentials.Outstanding())
}

func TestHandlerMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	body := []byte(`{"event":`)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set(PublicKeyHeader, "app1.key1")
	req.Header.Set(SignatureHeader, Sign(secret, body))

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), env.credentials.Outstanding())

	t.Run("Too large", func(t *testing.T) {
		env.handler.config.MaxBodySize = 16

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key1", ""))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "too large")
	})
}

func TestHandlerBrokerFailure(t *testing.T) {
	client := mocks.NewClient(t)
	client.On("Publish", mock.Anything, "relaycast", "app1.chat.general", mock.Anything).Return(errors.New("connection reset"))

	creds := store.NewMemoryCredentials(store.StaticKey{TenantID: "app1", KeyID: "key1", Secret: secret, Permissions: common.Permissions{"*": {"*"}}})
	config := NewConfig()
	handler := NewHandler(&config, creds, dispatch.New(client, "relaycast"), store.NewMemory(10), WithClock(func() time.Time { return now }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key1", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	res := decodeError(t, rec)
	assert.Equal(t, "InternalError", res.Name)
	assert.NotContains(t, res.Message, "connection reset")
	assert.Equal(t, int64(0), creds.Outstanding())
}

func TestHandlerReleasesConnectionOnLookupFailure(t *testing.T) {
	conn := mocks.NewCredentialConn(t)
	conn.On("SecretKey", mock.Anything, "app1", "key1").Return("", errors.New("connection lost"))
	conn.On("Release").Return().Once()

	pool := mocks.NewCredentialPool(t)
	pool.On("Acquire", mock.Anything).Return(conn, nil)

	config := NewConfig()
	handler := NewHandler(&config, pool, dispatch.New(mocks.NewClient(t), "relaycast"), store.NewMemory(10), WithClock(func() time.Time { return now }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key1", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerPoolFailure(t *testing.T) {
	pool := mocks.NewCredentialPool(t)
	pool.On("Acquire", mock.Anything).Return(nil, errors.New("too many clients"))

	config := NewConfig()
	handler := NewHandler(&config, pool, dispatch.New(mocks.NewClient(t), "relaycast"), store.NewMemory(10))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, event("chat:general", now), "app1.key1", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerAborted(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())

	conn := mocks.NewCredentialConn(t)
	conn.On("SecretKey", mock.Anything, "app1", "key1").Run(func(mock.Arguments) {
		// The peer goes away while the key is being resolved
		cancel()
	}).Return(secret, nil)
	conn.On("Permissions", mock.Anything, "app1", "key1").Return(common.Permissions{"*": {"*"}}, nil)
	conn.On("Release").Return().Once()

	pool := mocks.NewCredentialPool(t)
	pool.On("Acquire", mock.Anything).Return(conn, nil)

	env.handler.credentials = pool

	t.Run("Success response is suppressed", func(t *testing.T) {
		req := signedRequest(t, event("chat:general", now), "app1.key1", "").WithContext(ctx)

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, 0, rec.Body.Len())
		assert.Empty(t, rec.Header().Get("Content-Type"))
		assert.False(t, rec.Flushed)

		// Dispatch has completed nevertheless
		select {
		case <-env.deliveries:
		case <-time.After(time.Second):
			t.Fatal("envelope hasn't been published")
		}

		assert.Equal(t, uint64(1), env.metrics.Counter("ingress_aborted_total").Value())
	})

	t.Run("Failure response is suppressed", func(t *testing.T) {
		cctx, ccancel := context.WithCancel(context.Background())
		ccancel()

		body := strings.NewReader(fmt.Sprintf(`{"event":"msg","roomId":"chat","timestamp":%d}`, now.UnixMilli()))

		req := httptest.NewRequest(http.MethodPost, "/events", body).WithContext(cctx)
		req.Header.Set(PublicKeyHeader, "app1")
		req.Header.Set(SignatureHeader, "abc")

		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, 0, rec.Body.Len())
	})
}
