package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/relaycast/relaycast-go/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameToEnvVarName(t *testing.T) {
	assert.Equal(t, "RELAYCAST_QUEUE_COUNT", nameToEnvVarName("queue_count"))
	assert.Equal(t, "RELAYCAST_CONFIG_PATH", nameToEnvVarName("config-path"))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, map[string]string{"env": "prod", "region": "ams"}, parseTags("env:prod, region:ams,broken"))
}

func TestConfigPathFromArgs(t *testing.T) {
	assert.Equal(t, "a.toml", configPathFromArgs([]string{"relaycast", "--config-path", "a.toml"}))
	assert.Equal(t, "b.toml", configPathFromArgs([]string{"relaycast", "-config-path=b.toml"}))
	assert.Equal(t, "", configPathFromArgs([]string{"relaycast", "--port", "80"}))

	t.Setenv("RELAYCAST_CONFIG_PATH", "c.toml")
	assert.Equal(t, "c.toml", configPathFromArgs([]string{"relaycast"}))
}

func TestNewConfigFromCLI(t *testing.T) {
	c, err, shown := NewConfigFromCLI([]string{
		"relaycast",
		"--queue_count", "4",
		"--broker", "nats",
		"--postgres_max_conns", "3",
		"--metrics_tags", "env:test",
		"--presets", "memory",
	})

	require.NoError(t, err)
	require.False(t, shown)

	assert.Equal(t, 4, c.Broker.QueueCount)
	assert.Equal(t, "nats", c.Broker.Adapter)
	assert.Equal(t, int32(3), c.Store.Postgres.MaxConns)
	assert.Equal(t, map[string]string{"env": "test"}, c.Metrics.Tags)
	assert.Equal(t, []string{"memory"}, c.UserPresets)
	assert.Equal(t, "/events", c.Ingress.Path)

	t.Run("Env vars", func(t *testing.T) {
		t.Setenv("RELAYCAST_EXCHANGE", "rooms")
		t.Setenv("PORT", "9999")

		c, err, _ := NewConfigFromCLI([]string{"relaycast"})
		require.NoError(t, err)

		assert.Equal(t, "rooms", c.Broker.Exchange)
		assert.Equal(t, 9999, c.Server.Port)
	})
}

func TestNewConfigFromCLIWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaycast.toml")

	content := `
id = "node-7"

[broker]
queue_count = 3
exchange = "from-file"
`

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err, _ := NewConfigFromCLI([]string{"relaycast", "--config-path", path, "--exchange", "from-flag"})
	require.NoError(t, err)

	assert.Equal(t, path, c.ConfigFilePath)
	assert.Equal(t, "node-7", c.ID)
	assert.Equal(t, 3, c.Broker.QueueCount)
	assert.Equal(t, "from-flag", c.Broker.Exchange)
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer

	c, err, shown := NewConfigFromCLI([]string{"relaycast", "--print-config", "--queue_count", "6"}, WithCLIWriter(&buf))
	require.NoError(t, err)
	require.True(t, shown)

	assert.Contains(t, buf.String(), "queue_count = 6")

	decoded := config.NewConfig()

	_, err = toml.Decode(buf.String(), &decoded)
	require.NoError(t, err)

	assert.Equal(t, c.Broker, decoded.Broker)
}
