package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/relaycast/relaycast-go/common"
	nconfig "github.com/relaycast/relaycast-go/nats"

	"github.com/nats-io/nats.go"
)

// NATSClient emulates the exchange/queue model over NATS subjects:
// publishing goes to "<exchange>.<routing key>", and a queue binding
// is a subscription to the matching subject pattern delivering to the queue's handler.
// There are no persistent queues: deliveries for a binding are lost while disconnected.
type NATSClient struct {
	conf    *nconfig.NATSConfig
	queues  map[string]struct{}
	handler DeliveryHandler

	conn *nats.Conn

	// queue -> key -> subscriptions
	bindings map[string]map[string][]*nats.Subscription
	mu       sync.Mutex

	onReconnect func()

	log *log.Entry
}

var _ Client = (*NATSClient)(nil)

func NewNATSClient(c *nconfig.NATSConfig, queues []string, handler DeliveryHandler) *NATSClient {
	queuesSet := make(map[string]struct{}, len(queues))

	for _, q := range queues {
		queuesSet[q] = struct{}{}
	}

	return &NATSClient{
		conf:     c,
		queues:   queuesSet,
		handler:  handler,
		bindings: make(map[string]map[string][]*nats.Subscription),
		log:      log.WithFields(log.Fields{"context": "broker", "provider": "nats"}),
	}
}

func (n *NATSClient) Announce() string {
	return fmt.Sprintf("Using NATS broker: %s", n.conf.Servers)
}

func (n *NATSClient) OnReconnect(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.onReconnect = fn
}

func (n *NATSClient) Start(done chan (error)) error {
	connectOptions := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(n.conf.MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				n.log.Warnf("Connection failed: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.log.Infof("Connection restored: %s", nc.ConnectedUrl())

			n.mu.Lock()
			fn := n.onReconnect
			n.mu.Unlock()

			if fn != nil {
				fn()
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				done <- err
			}
		}),
	}

	if n.conf.DontRandomizeServers {
		connectOptions = append(connectOptions, nats.DontRandomize())
	}

	nc, err := nats.Connect(n.conf.Servers, connectOptions...)

	if err != nil {
		return err
	}

	n.conn = nc

	return nil
}

func (n *NATSClient) Shutdown(ctx context.Context) error {
	if n.conn != nil {
		n.conn.Close()
	}

	return nil
}

func (n *NATSClient) BindQueue(ctx context.Context, exchange string, queue string, key string) error {
	if _, ok := n.queues[queue]; !ok {
		return common.ErrBroker.New("unknown queue: %s", queue)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.bindings[queue]; !ok {
		n.bindings[queue] = make(map[string][]*nats.Subscription)
	}

	if _, ok := n.bindings[queue][key]; ok {
		return nil
	}

	subs := make([]*nats.Subscription, 0, 2)

	for _, subject := range n.bindingSubjects(exchange, key) {
		sub, err := n.conn.Subscribe(subject, func(m *nats.Msg) {
			if n.owns(exchange, queue, key, m.Subject) {
				n.handler(queue, m.Data)
			}
		})

		if err != nil {
			for _, s := range subs {
				s.Unsubscribe() // nolint:errcheck
			}

			return common.ErrBroker.Wrap(err, "failed to subscribe to %s", subject)
		}

		subs = append(subs, sub)
	}

	n.bindings[queue][key] = subs

	return nil
}

func (n *NATSClient) UnbindQueue(ctx context.Context, exchange string, queue string, key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs, ok := n.bindings[queue][key]

	if !ok {
		return nil
	}

	delete(n.bindings[queue], key)

	var firstErr error

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = common.ErrBroker.Wrap(err, "failed to unsubscribe from %s", sub.Subject)
		}
	}

	return firstErr
}

func (n *NATSClient) Publish(ctx context.Context, exchange string, key string, body []byte) error {
	if err := n.conn.Publish(n.subject(exchange, key), body); err != nil {
		return common.ErrBroker.Wrap(err, "failed to publish")
	}

	return nil
}

// owns returns true if the binding is the queue's first binding (in key order) matching the subject.
// Overlapping bindings of a queue subscribe to overlapping subjects, while a queue must get a message once.
func (n *NATSClient) owns(exchange string, queue string, key string, subject string) bool {
	routingKey := strings.TrimPrefix(subject, n.subject(exchange, ""))

	n.mu.Lock()
	defer n.mu.Unlock()

	owner := ""

	for k := range n.bindings[queue] {
		if TopicMatch(k, routingKey) && (owner == "" || k < owner) {
			owner = k
		}
	}

	return owner == key
}

func (n *NATSClient) subject(exchange string, key string) string {
	prefix := n.conf.SubjectPrefix

	if prefix == "" {
		prefix = exchange
	}

	return prefix + "." + key
}

// "#" matches zero or more words, while NATS ">" matches one or more,
// so a trailing "#" requires both the exact and the ">" subject.
// "*" means a single word for both.
func (n *NATSClient) bindingSubjects(exchange string, key string) []string {
	if key == "#" {
		return []string{n.subject(exchange, ">")}
	}

	if strings.HasSuffix(key, ".#") {
		base := n.subject(exchange, strings.TrimSuffix(key, ".#"))
		return []string{base, base + ".>"}
	}

	return []string{n.subject(exchange, key)}
}
