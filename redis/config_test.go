package redis

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRueidisOptions(t *testing.T) {
	t.Run("Single host", func(t *testing.T) {
		config := NewConfig()
		config.URL = "redis://localhost:6379/1"

		options, err := config.ToRueidisOptions()
		require.NoError(t, err)

		assert.Equal(t, []string{"localhost:6379"}, options.InitAddress)
		assert.Equal(t, 1, options.SelectDB)
		assert.False(t, config.IsCluster())
		assert.False(t, config.IsSentinel())
		assert.True(t, options.DisableCache)
	})

	t.Run("Trailing slash and no scheme", func(t *testing.T) {
		config := NewConfig()
		config.URL = "localhost:6380/"

		options, err := config.ToRueidisOptions()
		require.NoError(t, err)

		assert.Equal(t, []string{"localhost:6380"}, options.InitAddress)
	})

	t.Run("Cluster", func(t *testing.T) {
		config := NewConfig()
		config.URL = "redis://localhost:6379,redis://localhost:6389"

		options, err := config.ToRueidisOptions()
		require.NoError(t, err)

		assert.Equal(t, []string{"localhost:6379", "localhost:6389"}, config.Hostnames())
		assert.True(t, config.IsCluster())
		assert.True(t, options.ShuffleInit)
	})

	t.Run("Sentinel", func(t *testing.T) {
		config := NewConfig()
		config.URL = "redis://master-name"
		config.Sentinels = "localhost:1234,localhost:1235"

		options, err := config.ToRueidisOptions()
		require.NoError(t, err)

		assert.True(t, config.IsSentinel())
		assert.False(t, config.IsCluster())
		assert.Equal(t, "master-name", options.Sentinel.MasterSet)
		assert.Equal(t, []string{"localhost:1234", "localhost:1235"}, options.InitAddress)
	})

	t.Run("TLS", func(t *testing.T) {
		config := NewConfig()
		config.URL = "rediss://localhost:6379"

		options, err := config.ToRueidisOptions()
		require.NoError(t, err)
		require.NotNil(t, options.TLSConfig)

		assert.True(t, options.TLSConfig.InsecureSkipVerify)
	})
}

func TestKey(t *testing.T) {
	config := NewConfig()
	assert.Equal(t, "relaycast:presence:app1:chat", config.Key("presence", "app1:chat"))

	config.KeyPrefix = ""
	assert.Equal(t, "history:app1:chat", config.Key("history", "app1:chat"))
}

func TestConfig__ToToml(t *testing.T) {
	config := NewConfig()
	config.URL = "redis://redis.example:6379/2"
	config.KeyPrefix = "rc"
	config.TLSVerify = true

	tomlStr := config.ToToml()

	assert.Contains(t, tomlStr, "url = \"redis://redis.example:6379/2\"")
	assert.Contains(t, tomlStr, "tls_verify = true")

	var conf Config
	_, err := toml.Decode(tomlStr, &conf)
	require.NoError(t, err)

	assert.Equal(t, "redis://redis.example:6379/2", conf.URL)
	assert.Equal(t, "rc", conf.KeyPrefix)
	assert.True(t, conf.TLSVerify)
	assert.True(t, conf.DisableCache)
	assert.Equal(t, 30, conf.KeepalivePingInterval)
}
