package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/config"
	"github.com/relaycast/relaycast-go/ingress"
	"github.com/relaycast/relaycast-go/mocks"
	"github.com/relaycast/relaycast-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := config.NewConfig()
	c.ID = "node-test"
	c.UserPresets = []string{"memory"}
	c.Broker.QueueCount = 2
	c.Metrics.RotateInterval = 0
	c.Store.Keys = []store.StaticKey{
		{TenantID: "app1", KeyID: "key1", Secret: "s3Krit", Permissions: common.Permissions{"*": {"*"}}},
	}

	return &c
}

func TestNewRunnerValidation(t *testing.T) {
	c := memoryConfig()
	c.Broker.QueueCount = 0

	_, err := NewRunner(c, nil)
	assert.ErrorContains(t, err, "queue count must be positive")

	t.Run("Generates instance id", func(t *testing.T) {
		c := memoryConfig()
		c.ID = ""

		_, err := NewRunner(c, nil)
		require.NoError(t, err)

		assert.NotEmpty(t, c.ID)
	})

	t.Run("Single broker factory", func(t *testing.T) {
		_, err := NewRunner(memoryConfig(), []Option{WithBroker(defaultBrokerFactory), WithBroker(defaultBrokerFactory)})
		assert.ErrorContains(t, err, "already assigned")
	})
}

func TestEmbed(t *testing.T) {
	runner, err := NewRunner(memoryConfig(), []Option{WithName("Relaycast Test")})
	require.NoError(t, err)

	ctx := context.Background()

	embedded, err := runner.Embed(ctx)
	require.NoError(t, err)

	defer embedded.Shutdown(ctx) // nolint:errcheck

	socket := mocks.NewMockSocket(mocks.NewSession("app1", "alice"))

	_, err = embedded.Orchestrator().Join(ctx, socket, "chat")
	require.NoError(t, err)

	_, err = embedded.Orchestrator().Subscribe(ctx, socket, "chat", "msg", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return runner.manager.IsBound("app1:chat")
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, embedded.Registry().Subscribers("app1:chat"))

	body, err := json.Marshal(&ingress.Request{Event: "msg", RoomID: "chat", Data: json.RawMessage(`"hi"`), Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set(ingress.PublicKeyHeader, "app1.key1")
	req.Header.Set(ingress.SignatureHeader, ingress.Sign("s3Krit", body))

	rec := httptest.NewRecorder()
	embedded.IngressHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	msg, err := socket.Read()
	require.NoError(t, err)

	assert.Contains(t, string(msg), `"room":"chat"`)
	assert.Contains(t, string(msg), `"body":"hi"`)

	t.Run("Metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		embedded.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ingress_requests_total")
	})

	t.Run("Server routes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runner.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		runner.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
