package cli

import (
	"context"
	"net/http"

	"github.com/relaycast/relaycast-go/registry"
	"github.com/relaycast/relaycast-go/room"
	"github.com/relaycast/relaycast-go/version"
)

// Embedded is a minimal interface to the underlying Runner for embedding the gateway
// into your own Go application (which owns the connections and the HTTP server)
type Embedded struct {
	r *Runner
}

// Orchestrator returns the room lifecycle orchestrator connections are joined through
func (e *Embedded) Orchestrator() *room.Orchestrator {
	return e.r.orchestrator.Load()
}

// Registry returns the local subscription registry
func (e *Embedded) Registry() *registry.Registry {
	return e.r.registry
}

// IngressHandler returns an HTTP handler to process signed publish requests
func (e *Embedded) IngressHandler() http.Handler {
	return e.r.ingress
}

// MetricsHandler returns an HTTP handler serving metrics in the Prometheus format
func (e *Embedded) MetricsHandler() http.Handler {
	return e.r.metrics.PrometheusHandler()
}

// Shutdown stops the gateway components gracefully.
func (e *Embedded) Shutdown(ctx context.Context) error {
	return e.r.Shutdown(ctx)
}

// Embed starts the application without setting up HTTP server, signals, etc.
func (r *Runner) Embed(ctx context.Context) (*Embedded, error) {
	r.announceDebugMode()

	r.log.WithField("id", r.config.ID).Infof("Starting embedded %s %s", r.name, version.Version())

	if err := r.start(ctx); err != nil {
		return nil, err
	}

	go func() {
		if err := r.metrics.Run(); err != nil {
			r.log.Errorf("Metrics failed: %v", err)
		}
	}()

	return &Embedded{r: r}, nil
}
