// Package broker contains the exchange/queue clients the gateway uses for cross-instance fan-out
package broker

import (
	"context"
)

// DeliveryHandler is called for every message consumed from one of the instance's shard queues
type DeliveryHandler func(queue string, body []byte)

// Client is responsible for:
// - Declaring the exchange and the instance's shard queues (once, at start).
// - Binding and unbinding shard queues to routing keys.
// - Publishing messages to the exchange.
// - Consuming shard queues and passing deliveries to the handler.
//
// Binding operations must be idempotent: binding an already bound key
// or unbinding an unknown one is not an error.
//
//go:generate mockery --name Client --output "../mocks" --outpkg mocks
type Client interface {
	Start(done chan (error)) error
	Shutdown(ctx context.Context) error

	Announce() string

	BindQueue(ctx context.Context, exchange string, queue string, key string) error
	UnbindQueue(ctx context.Context, exchange string, queue string, key string) error
	Publish(ctx context.Context, exchange string, key string, body []byte) error

	// Registers a callback invoked after the connection has been restored
	OnReconnect(fn func())
}

// New creates a broker client for the configured adapter
func New(c *Config, queues []string, handler DeliveryHandler) (Client, error) {
	switch c.Adapter {
	case "amqp":
		return NewAMQPClient(&c.AMQP, c.Exchange, queues, handler), nil
	case "nats":
		return NewNATSClient(&c.NATS, queues, handler), nil
	case "memory":
		return NewMemoryClient(NewMemoryExchange(), queues, handler), nil
	}

	return nil, unknownAdapterError(c.Adapter)
}
