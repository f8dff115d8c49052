package utils

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
)

// ShutdownHandler is called on SIGINT/SIGTERM with a context cancelled after the shutdown timeout
// or when the second signal is received
type ShutdownHandler func(ctx context.Context) error

// GracefulSignals runs registered shutdown handlers in order on the first termination signal.
// The second signal cancels the handlers context and triggers the force terminate handler.
type GracefulSignals struct {
	handlers              []ShutdownHandler
	forceTerminateHandler func()
	timeout               time.Duration
	executed              bool

	ch chan os.Signal
	mu sync.Mutex

	log *log.Entry
}

func NewGracefulSignals(timeout time.Duration) *GracefulSignals {
	return &GracefulSignals{
		timeout:               timeout,
		forceTerminateHandler: func() { os.Exit(0) },
		handlers:              make([]ShutdownHandler, 0),
		ch:                    make(chan os.Signal, 1),
		log:                   log.WithField("context", "signals"),
	}
}

func (s *GracefulSignals) Handle(handler ShutdownHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, handler)
}

func (s *GracefulSignals) HandleForceTerminate(handler func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forceTerminateHandler = handler
}

func (s *GracefulSignals) Listen() {
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM)
	go s.listen()
}

// Shutdown runs the handlers as if a termination signal was received.
// Subsequent calls (and signals) are ignored.
func (s *GracefulSignals) Shutdown() {
	s.exec()
}

func (s *GracefulSignals) listen() {
	for range s.ch {
		s.exec()
	}
}

func (s *GracefulSignals) exec() {
	s.mu.Lock()

	if s.executed {
		s.mu.Unlock()
		return
	}

	shutdown := make(chan struct{})
	s.executed = true

	terminateCtx, terminateImmediately := context.WithCancel(context.Background())

	timeoutCtx, cancelTimeout := context.WithTimeout(terminateCtx, s.timeout)
	defer cancelTimeout()

	go func() {
		termSig := make(chan os.Signal, 1)
		signal.Notify(termSig, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-termSig:
		case <-shutdown:
			return
		}

		s.log.Warn("Forced shutdown requested")

		terminateImmediately()

		// Handlers are expected to return on context cancellation
		<-shutdown

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.forceTerminateHandler != nil {
			s.forceTerminateHandler()
		}
	}()

	handlers := s.handlers[:] // nolint:gocritic
	s.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(timeoutCtx); err != nil {
			s.log.Warnf("Shutdown handler failed: %v", err)
		}
	}

	close(shutdown)
}
