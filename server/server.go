// Package server contains the HTTP server serving the ingress, health and metrics endpoints
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joomcode/errorx"
)

// HTTPServer is wrapper over http.Server with a chi router
type HTTPServer struct {
	server  *http.Server
	router  chi.Router
	secured bool
	config  *Config

	started  bool
	shutdown bool
	mu       sync.Mutex

	log *log.Entry
}

// NewServer builds HTTPServer from config params and registers the health endpoint
func NewServer(c *Config) (*HTTPServer, error) {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(c.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.WriteTimeout) * time.Second,
		IdleTimeout:  time.Minute,
	}

	secured := c.SSL.Available()

	if secured {
		cer, err := tls.LoadX509KeyPair(c.SSL.CertPath, c.SSL.KeyPath)
		if err != nil {
			return nil, errorx.Decorate(err, "failed to load SSL certificate")
		}

		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cer}, MinVersion: tls.VersionTLS12}
	}

	if c.HealthPath != "" {
		router.Get(c.HealthPath, HealthHandler)
	}

	return &HTTPServer{
		server:  server,
		router:  router,
		secured: secured,
		config:  c,
		log:     log.WithFields(log.Fields{"context": "http", "addr": addr}),
	}, nil
}

// Router returns the router to mount handlers on
func (s *HTTPServer) Router() chi.Router {
	return s.router
}

// MountIngress registers the signed publish handler at the path
func (s *HTTPServer) MountIngress(path string, handler http.Handler) {
	r := s.router.With(CORS(s.config.Origins()))

	r.Method(http.MethodPost, path, handler)
	r.Method(http.MethodOptions, path, handler)
}

// Address returns the server address with the scheme
func (s *HTTPServer) Address() string {
	if s.secured {
		return "https://" + s.server.Addr
	}

	return "http://" + s.server.Addr
}

// Start starts the server and blocks until it's stopped.
// Returns nil when the server has been shut down.
func (s *HTTPServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errorx.IllegalState.New("server is already running")
	}
	s.started = true
	s.mu.Unlock()

	s.log.Infof("Listening on %s", s.Address())

	var err error

	if s.secured {
		err = s.server.ListenAndServeTLS("", "")
	} else {
		err = s.server.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting new requests and waits for in-flight ones
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	s.log.Debug("Shutting down")

	return s.server.Shutdown(ctx)
}

// ServeHTTP makes the server usable as a handler in tests
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
