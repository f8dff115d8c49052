package broker

import (
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
	nconfig "github.com/relaycast/relaycast-go/nats"
)

const (
	defaultExchange   = "relaycast"
	defaultQueueCount = 10
)

type Config struct {
	// Adapter name (amqp, nats or memory)
	Adapter string `toml:"adapter"`
	// Exchange to publish room messages to and bind shard queues on
	Exchange string `toml:"exchange"`
	// Number of shard queues per instance. Must not change while the instance is running
	QueueCount int `toml:"queue_count"`
	// How often to retry failed bind/unbind operations (seconds)
	RetryInterval int `toml:"retry_interval"`

	AMQP AMQPConfig         `toml:"amqp"`
	NATS nconfig.NATSConfig `toml:"nats"`
}

func NewConfig() Config {
	return Config{
		Adapter:       "amqp",
		Exchange:      defaultExchange,
		QueueCount:    defaultQueueCount,
		RetryInterval: 5,
		AMQP:          NewAMQPConfig(),
		NATS:          nconfig.NewNATSConfig(),
	}
}

// Validate returns an error for configurations the gateway must not start with
func (c Config) Validate() error {
	if c.QueueCount <= 0 {
		return errorx.IllegalArgument.New("broker queue count must be positive, got %d", c.QueueCount)
	}

	if c.Exchange == "" {
		return errorx.IllegalArgument.New("broker exchange name is required")
	}

	switch c.Adapter {
	case "amqp", "nats", "memory":
		return nil
	}

	return unknownAdapterError(c.Adapter)
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Broker adapter (amqp, nats or memory)\n")
	result.WriteString(fmt.Sprintf("adapter = \"%s\"\n", c.Adapter))

	result.WriteString("# Topic exchange name\n")
	result.WriteString(fmt.Sprintf("exchange = \"%s\"\n", c.Exchange))

	result.WriteString("# Number of shard queues per instance\n")
	result.WriteString(fmt.Sprintf("queue_count = %d\n", c.QueueCount))

	result.WriteString("# Failed bindings retry interval (seconds)\n")
	result.WriteString(fmt.Sprintf("retry_interval = %d\n", c.RetryInterval))

	result.WriteString("\n[broker.amqp]\n")
	result.WriteString(c.AMQP.ToToml())

	result.WriteString("[broker.nats]\n")
	result.WriteString(c.NATS.ToToml())

	return result.String()
}

func unknownAdapterError(adapter string) error {
	return errorx.IllegalArgument.New("unknown broker adapter: %s", adapter)
}
