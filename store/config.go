package store

import (
	"fmt"
	"strings"

	"github.com/relaycast/relaycast-go/common"
)

// StaticKey is an API key served by the in-memory credential store
type StaticKey struct {
	TenantID    string             `toml:"tenant"`
	KeyID       string             `toml:"key_id"`
	Secret      string             `toml:"secret"`
	Permissions common.Permissions `toml:"permissions"`
}

type PostgresConfig struct {
	// Postgres connection string
	URL string `toml:"url"`
	// Max number of pooled connections
	MaxConns int32 `toml:"max_conns"`
	// Table with API keys
	Table string `toml:"table"`
}

type Config struct {
	// Credential store adapter: postgres or memory
	Credentials string `toml:"credentials"`
	// Presence, history and subscriptions adapter: redis or memory
	Adapter string `toml:"adapter"`
	// Max number of messages kept per room
	HistoryLimit int `toml:"history_limit"`
	// Room history expiration (seconds)
	HistoryTTL int64 `toml:"history_ttl"`
	// Max length of the metrics events stream
	MetricsStreamLimit int `toml:"metrics_stream_limit"`

	Postgres PostgresConfig `toml:"postgres"`
	Keys     []StaticKey    `toml:"keys"`
}

func NewConfig() Config {
	return Config{
		Credentials:        "postgres",
		Adapter:            "redis",
		HistoryLimit:       100,
		HistoryTTL:         24 * 60 * 60,
		MetricsStreamLimit: 100,
		Postgres: PostgresConfig{
			URL:      "postgres://localhost:5432/relaycast",
			MaxConns: 10,
			Table:    "api_keys",
		},
	}
}

func (c Config) Validate() error {
	if c.Credentials != "postgres" && c.Credentials != "memory" {
		return common.ErrValidation.New("unknown credentials adapter: %s", c.Credentials)
	}

	if c.Adapter != "redis" && c.Adapter != "memory" {
		return common.ErrValidation.New("unknown store adapter: %s", c.Adapter)
	}

	if c.HistoryLimit < 0 {
		return common.ErrValidation.New("history limit must not be negative")
	}

	return nil
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Credential store adapter (postgres, memory)\n")
	result.WriteString(fmt.Sprintf("credentials = \"%s\"\n", c.Credentials))

	result.WriteString("# Presence, history and subscriptions adapter (redis, memory)\n")
	result.WriteString(fmt.Sprintf("adapter = \"%s\"\n", c.Adapter))

	result.WriteString("# Max number of messages kept per room\n")
	result.WriteString(fmt.Sprintf("history_limit = %d\n", c.HistoryLimit))

	result.WriteString("# Room history expiration (seconds)\n")
	result.WriteString(fmt.Sprintf("history_ttl = %d\n", c.HistoryTTL))

	result.WriteString("# Max length of the metrics events stream\n")
	result.WriteString(fmt.Sprintf("metrics_stream_limit = %d\n", c.MetricsStreamLimit))

	result.WriteString("\n[store.postgres]\n")

	result.WriteString("# Postgres connection string\n")
	result.WriteString(fmt.Sprintf("url = \"%s\"\n", c.Postgres.URL))

	result.WriteString("# Max number of pooled connections\n")
	result.WriteString(fmt.Sprintf("max_conns = %d\n", c.Postgres.MaxConns))

	result.WriteString("# API keys table\n")
	result.WriteString(fmt.Sprintf("table = \"%s\"\n", c.Postgres.Table))

	result.WriteString("\n# Static API keys (memory credentials only)\n")
	result.WriteString("# [[store.keys]]\n")
	result.WriteString("# tenant = \"app1\"\n")
	result.WriteString("# key_id = \"key1\"\n")
	result.WriteString("# secret = \"secret\"\n")
	result.WriteString("# permissions = { \"*\" = [\"*\"] }\n")

	result.WriteString("\n")

	return result.String()
}
