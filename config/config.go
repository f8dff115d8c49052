// Package config contains the aggregate gateway configuration
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/broker"
	"github.com/relaycast/relaycast-go/ingress"
	"github.com/relaycast/relaycast-go/logger"
	"github.com/relaycast/relaycast-go/metrics"
	rconfig "github.com/relaycast/relaycast-go/redis"
	"github.com/relaycast/relaycast-go/server"
	"github.com/relaycast/relaycast-go/store"
)

// Config contains main application configuration
type Config struct {
	// Instance identifier used in shard queue names. Generated when empty
	ID string `toml:"id"`
	// Graceful shutdown timeout (seconds)
	ShutdownTimeout int `toml:"shutdown_timeout"`
	// Number of local fan-out shards
	RegistryShards int `toml:"registry_shards"`
	// Bind/unbind operation timeout (seconds)
	BindTimeout int `toml:"bind_timeout"`

	Server  server.Config  `toml:"server"`
	Ingress ingress.Config `toml:"ingress"`
	Broker  broker.Config  `toml:"broker"`
	Redis   rconfig.Config `toml:"redis"`
	Store   store.Config   `toml:"store"`
	Metrics metrics.Config `toml:"metrics"`
	Log     logger.Config  `toml:"logging"`

	ConfigFilePath string   `toml:"-"`
	UserPresets    []string `toml:"presets"`
}

// NewConfig returns a new config with defaults
func NewConfig() Config {
	return Config{
		ShutdownTimeout: 30,
		RegistryShards:  16,
		BindTimeout:     5,
		Server:          server.NewConfig(),
		Ingress:         ingress.NewConfig(),
		Broker:          broker.NewConfig(),
		Redis:           rconfig.NewConfig(),
		Store:           store.NewConfig(),
		Metrics:         metrics.NewConfig(),
		Log:             logger.NewConfig(),
	}
}

// LoadFromFile decodes the TOML file on top of the current values
func (c *Config) LoadFromFile() error {
	if c.ConfigFilePath == "" {
		return nil
	}

	md, err := toml.DecodeFile(c.ConfigFilePath, c)

	if err != nil {
		return errorx.Decorate(err, "failed to read config file %s", c.ConfigFilePath)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))

		for i, key := range undecoded {
			keys[i] = key.String()
		}

		return errorx.IllegalArgument.New("unknown config keys: %s", strings.Join(keys, ", "))
	}

	return nil
}

// Validate returns an error for configurations the gateway must not start with
func (c *Config) Validate() error {
	if err := c.Broker.Validate(); err != nil {
		return err
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	if c.RegistryShards <= 0 {
		return errorx.IllegalArgument.New("registry shards must be positive, got %d", c.RegistryShards)
	}

	if c.Ingress.Path == "" {
		return errorx.IllegalArgument.New("ingress path is required")
	}

	return nil
}

func (c *Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Relaycast configuration\n\n")

	result.WriteString("# Instance identifier (generated when empty)\n")
	if c.ID != "" {
		result.WriteString(fmt.Sprintf("id = \"%s\"\n", c.ID))
	} else {
		result.WriteString("# id = \"node-1\"\n")
	}

	result.WriteString("# Graceful shutdown timeout (seconds)\n")
	result.WriteString(fmt.Sprintf("shutdown_timeout = %d\n", c.ShutdownTimeout))

	result.WriteString("# Number of local fan-out shards\n")
	result.WriteString(fmt.Sprintf("registry_shards = %d\n", c.RegistryShards))

	result.WriteString("# Bind/unbind operation timeout (seconds)\n")
	result.WriteString(fmt.Sprintf("bind_timeout = %d\n", c.BindTimeout))

	result.WriteString("# Configuration presets (fly, heroku, memory)\n")
	if len(c.UserPresets) > 0 {
		result.WriteString(fmt.Sprintf("presets = [\"%s\"]\n", strings.Join(c.UserPresets, "\", \"")))
	} else {
		result.WriteString("# presets = [\"memory\"]\n")
	}

	result.WriteString("\n[server]\n")
	result.WriteString(c.Server.ToToml())

	result.WriteString("[ingress]\n")
	result.WriteString(c.Ingress.ToToml())

	result.WriteString("[broker]\n")
	result.WriteString(c.Broker.ToToml())

	result.WriteString("[redis]\n")
	result.WriteString(c.Redis.ToToml())

	result.WriteString("[store]\n")
	result.WriteString(c.Store.ToToml())

	result.WriteString("[metrics]\n")
	result.WriteString(c.Metrics.ToToml())

	result.WriteString("[logging]\n")
	result.WriteString(c.Log.ToToml())

	return result.String()
}
