// Package cli builds the gateway configuration from flags and runs the gateway
package cli

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/binding"
	"github.com/relaycast/relaycast-go/broker"
	"github.com/relaycast/relaycast-go/config"
	"github.com/relaycast/relaycast-go/dispatch"
	"github.com/relaycast/relaycast-go/ingress"
	"github.com/relaycast/relaycast-go/logger"
	"github.com/relaycast/relaycast-go/metrics"
	"github.com/relaycast/relaycast-go/registry"
	"github.com/relaycast/relaycast-go/room"
	"github.com/relaycast/relaycast-go/routing"
	"github.com/relaycast/relaycast-go/server"
	"github.com/relaycast/relaycast-go/store"
	"github.com/relaycast/relaycast-go/utils"
	"github.com/relaycast/relaycast-go/version"
)

// Shutdownable is a component stopped on the gateway shutdown
type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

type brokerFactory = func(c *config.Config, queues []string, handler broker.DeliveryHandler) (broker.Client, error)
type credentialsFactory = func(ctx context.Context, c *config.Config) (store.CredentialPool, Shutdownable, error)

// stores groups the room state stores; Redis also records membership events
type stores struct {
	presence      store.PresenceStore
	history       store.HistoryStore
	subscriptions store.SubscriptionStore
	sinks         []metrics.Sink
}

// Runner wires the gateway components together and controls their lifecycle
type Runner struct {
	name   string
	config *config.Config
	log    *log.Entry

	brokerFactory      brokerFactory
	credentialsFactory credentialsFactory

	metrics      *metrics.Metrics
	codec        *routing.Codec
	client       broker.Client
	manager      *binding.Manager
	registry     *registry.Registry
	dispatcher   *dispatch.Dispatcher
	orchestrator atomic.Pointer[room.Orchestrator]
	ingress      *ingress.Handler
	server       *server.HTTPServer

	stopBindings  context.CancelFunc
	shutdownables []Shutdownable
	errChan       chan error
}

// NewRunner returns a new Runner structure
func NewRunner(c *config.Config, opts []Option) (*Runner, error) {
	r := &Runner{
		name:          "Relaycast",
		config:        c,
		shutdownables: []Shutdownable{},
		errChan:       make(chan error),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if err := logger.InitLogger(c.Log.LogFormat, c.Log.Level()); err != nil {
		return nil, errorx.Decorate(err, "failed to initialize logger")
	}

	r.log = log.WithField("context", "main")

	if err := c.LoadPresets(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, errorx.Decorate(err, "invalid configuration")
	}

	if c.ID == "" {
		id, err := dispatch.NewRequestID()

		if err != nil {
			return nil, errorx.Decorate(err, "failed to generate instance id")
		}

		c.ID = id
	}

	if r.brokerFactory == nil {
		r.brokerFactory = defaultBrokerFactory
	}

	if r.credentialsFactory == nil {
		r.credentialsFactory = defaultCredentialsFactory
	}

	m, err := metrics.FromConfig(&c.Metrics)

	if err != nil {
		return nil, errorx.Decorate(err, "failed to initialize metrics writers")
	}

	r.metrics = m

	return r, nil
}

// Run starts the gateway and blocks until it's stopped
func (r *Runner) Run() error {
	r.announceDebugMode()

	r.log.WithField("id", r.config.ID).Infof("Starting %s %s (pid: %d, queues: %d)", r.name, version.Version(), os.Getpid(), r.config.Broker.QueueCount)

	if err := r.start(context.Background()); err != nil {
		return err
	}

	go r.startMetrics()

	go func() {
		if err := r.server.Start(); err != nil {
			r.errChan <- errorx.Decorate(err, "HTTP server failed")
		}
	}()

	r.log.Infof("Handle signed publish requests at %s%s", r.server.Address(), r.config.Ingress.Path)

	if r.config.Metrics.HTTPEnabled() {
		r.log.Infof("Serve metrics at %s%s", r.server.Address(), r.config.Metrics.HTTP)
	}

	r.setupSignalHandlers()

	// Wait for an error (or none)
	return <-r.errChan
}

// start builds and starts every component but the HTTP server
func (r *Runner) start(ctx context.Context) error {
	c := r.config

	codec, err := routing.NewCodec(c.ID, c.Broker.QueueCount)

	if err != nil {
		return err
	}

	r.codec = codec

	client, err := r.brokerFactory(c, codec.Queues(), r.handleDelivery)

	if err != nil {
		return err
	}

	r.client = client
	r.log.Info(client.Announce())

	r.manager = binding.NewManager(
		client,
		codec,
		c.Broker.Exchange,
		binding.WithRetryInterval(time.Duration(c.Broker.RetryInterval)*time.Second),
		binding.WithOperationTimeout(time.Duration(c.BindTimeout)*time.Second),
		binding.WithInstrumenter(r.metrics),
	)

	if err := client.Start(r.errChan); err != nil {
		return errorx.Decorate(err, "failed to start broker client")
	}

	r.shutdownables = append(r.shutdownables, client)

	bindingsCtx, stopBindings := context.WithCancel(ctx)
	r.stopBindings = stopBindings

	go r.manager.Run(bindingsCtx) // nolint:errcheck

	r.registry = registry.New(
		registry.WithHooks(r.manager),
		registry.WithShards(c.RegistryShards),
		registry.WithInstrumenter(r.metrics),
	)

	r.dispatcher = dispatch.New(client, c.Broker.Exchange, dispatch.WithInstanceID(c.ID), dispatch.WithInstrumenter(r.metrics))

	st, err := r.buildStores(ctx)

	if err != nil {
		return err
	}

	sink := metrics.MultiSink{metrics.NewCounterSink(r.metrics)}
	sink = append(sink, st.sinks...)

	r.orchestrator.Store(room.New(
		r.registry,
		r.dispatcher,
		room.WithPresence(st.presence),
		room.WithHistory(st.history),
		room.WithSubscriptions(st.subscriptions),
		room.WithSink(sink),
		room.WithCodec(r.codec),
		room.WithInstrumenter(r.metrics),
	))

	credentials, closer, err := r.credentialsFactory(ctx, c)

	if err != nil {
		return err
	}

	if closer != nil {
		r.shutdownables = append(r.shutdownables, closer)
	}

	r.ingress = ingress.NewHandler(&c.Ingress, credentials, r.dispatcher, st.history, ingress.WithInstrumenter(r.metrics))

	srv, err := server.NewServer(&c.Server)

	if err != nil {
		return err
	}

	srv.MountIngress(c.Ingress.Path, r.ingress)

	if c.Metrics.HTTPEnabled() {
		srv.Router().Method(http.MethodGet, c.Metrics.HTTP, r.metrics.PrometheusHandler())
	}

	r.server = srv

	return nil
}

func (r *Runner) buildStores(ctx context.Context) (*stores, error) {
	c := r.config

	switch c.Store.Adapter {
	case "redis":
		rs := store.NewRedisStore(&c.Store, &c.Redis)

		if err := rs.Start(ctx); err != nil {
			return nil, errorx.Decorate(err, "failed to connect to Redis")
		}

		r.log.Info(rs.Announce())
		r.shutdownables = append(r.shutdownables, rs)

		return &stores{presence: rs, history: rs, subscriptions: rs, sinks: []metrics.Sink{rs}}, nil
	case "memory":
		mem := store.NewMemory(c.Store.HistoryLimit)

		return &stores{presence: mem, history: mem, subscriptions: mem}, nil
	}

	return nil, errorx.IllegalArgument.New("unknown store adapter: %s", c.Store.Adapter)
}

// Deliveries may arrive as soon as the client starts consuming, before the orchestrator is built;
// there are no bindings (and no local sockets) at that point
func (r *Runner) handleDelivery(queue string, body []byte) {
	if o := r.orchestrator.Load(); o != nil {
		o.HandleDelivery(queue, body)
	}
}

func (r *Runner) startMetrics() {
	if err := r.metrics.Run(); err != nil {
		r.errChan <- errorx.Decorate(err, "metrics failed")
	}
}

func (r *Runner) setupSignalHandlers() {
	s := utils.NewGracefulSignals(time.Duration(r.config.ShutdownTimeout) * time.Second)

	s.HandleForceTerminate(func() {
		r.log.Warn("Immediate termination requested. Stopped")
		r.errChan <- nil
	})

	s.Handle(func(ctx context.Context) error {
		r.log.Infof("Shutting down... (hit Ctrl-C to stop immediately or wait for up to %ds for graceful shutdown)", r.config.ShutdownTimeout)
		return nil
	})

	s.Handle(r.server.Shutdown)
	s.Handle(r.Shutdown)

	s.Handle(func(ctx context.Context) error {
		r.errChan <- nil
		return nil
	})

	s.Listen()
}

// Shutdown stops the bindings processing and the components in the order they've been started
func (r *Runner) Shutdown(ctx context.Context) error {
	if r.stopBindings != nil {
		r.stopBindings()
	}

	for _, shutdownable := range r.shutdownables {
		if err := shutdownable.Shutdown(ctx); err != nil {
			r.log.Warnf("Shutdown failed: %v", err)
		}
	}

	r.metrics.Shutdown()

	return nil
}

func (r *Runner) announceDebugMode() {
	if r.config.Log.Debug {
		r.log.Debug("🔧 🔧 🔧 Debug mode is on 🔧 🔧 🔧")
	}
}

func defaultBrokerFactory(c *config.Config, queues []string, handler broker.DeliveryHandler) (broker.Client, error) {
	return broker.New(&c.Broker, queues, handler)
}

func defaultCredentialsFactory(ctx context.Context, c *config.Config) (store.CredentialPool, Shutdownable, error) {
	switch c.Store.Credentials {
	case "postgres":
		pg := store.NewPostgresCredentials(&c.Store.Postgres)

		if err := pg.Start(ctx); err != nil {
			return nil, nil, errorx.Decorate(err, "failed to connect to Postgres")
		}

		return pg, pg, nil
	case "memory":
		return store.NewMemoryCredentials(c.Store.Keys...), nil, nil
	}

	return nil, nil, errorx.IllegalArgument.New("unknown credentials adapter: %s", c.Store.Credentials)
}
