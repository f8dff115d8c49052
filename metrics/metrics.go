// Package metrics contains the instance counters and gauges registry,
// its writers (log, statsd) and the Prometheus exposition.
package metrics

import (
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Instrumenter is the interface components use to report metrics
type Instrumenter interface {
	CounterIncrement(name string)
	CounterAdd(name string, val uint64)
	GaugeIncrement(name string)
	GaugeDecrement(name string)
	GaugeSet(name string, val uint64)
	RegisterCounter(name string, desc string)
	RegisterGauge(name string, desc string)
}

// IntervalWriter is a periodical metrics writer
type IntervalWriter interface {
	Run(interval int) error
	Stop()
	Write(m *Metrics) error
}

// Metrics stores the instance stats
type Metrics struct {
	mu             sync.RWMutex
	writers        []IntervalWriter
	tags           map[string]string
	rotateInterval time.Duration
	counters       map[string]*Counter
	gauges         map[string]*Gauge
	shutdownCh     chan struct{}

	promRegistry *prometheus.Registry
	promOnce     sync.Once

	log *log.Entry
}

var _ Instrumenter = (*Metrics)(nil)

// FromConfig creates a new metrics instance with the writers enabled in the configuration
func FromConfig(config *Config) (*Metrics, error) {
	writers := []IntervalWriter{}

	if config.Log {
		writers = append(writers, NewBasePrinter(config.LogFilter))
	}

	if config.Statsd.Enabled() {
		writers = append(writers, NewStatsdWriter(config.Statsd, config.Tags))
	}

	instance := NewMetrics(writers, config.RotateInterval)
	instance.tags = config.Tags

	return instance, nil
}

func NewMetrics(writers []IntervalWriter, rotateIntervalSeconds int) *Metrics {
	return &Metrics{
		writers:        writers,
		rotateInterval: time.Duration(rotateIntervalSeconds) * time.Second,
		counters:       make(map[string]*Counter),
		gauges:         make(map[string]*Gauge),
		shutdownCh:     make(chan struct{}),
		log:            log.WithField("context", "metrics"),
	}
}

// Run periodically rotates counters and flushes the writers until Shutdown
func (m *Metrics) Run() error {
	interval := int(m.rotateInterval.Seconds())

	for _, writer := range m.writers {
		if err := writer.Run(interval); err != nil {
			return err
		}
	}

	if m.rotateInterval <= 0 {
		<-m.done()
		return nil
	}

	ticker := time.NewTicker(m.rotateInterval)
	defer ticker.Stop()

	done := m.done()

	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			m.rotate()

			for _, writer := range m.writers {
				if err := writer.Write(m); err != nil {
					m.log.Errorf("Metrics writer failed to write: %v", err)
				}
			}
		}
	}
}

func (m *Metrics) done() chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shutdownCh == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return m.shutdownCh
}

// Shutdown stops metrics updates
func (m *Metrics) Shutdown() {
	m.mu.Lock()

	if m.shutdownCh == nil {
		m.mu.Unlock()
		return
	}

	close(m.shutdownCh)
	m.shutdownCh = nil

	m.mu.Unlock()

	for _, writer := range m.writers {
		writer.Stop()
	}
}

func (m *Metrics) Tags() map[string]string {
	return m.tags
}

// RegisterCounter adds a counter to the registry. Re-registering keeps the existing counter
func (m *Metrics) RegisterCounter(name string, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.counters[name]; ok {
		return
	}

	m.counters[name] = NewCounter(name, desc)
}

// RegisterGauge adds a gauge to the registry. Re-registering keeps the existing gauge
func (m *Metrics) RegisterGauge(name string, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.gauges[name]; ok {
		return
	}

	m.gauges[name] = NewGauge(name, desc)
}

func (m *Metrics) Counter(name string) *Counter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[name]
}

func (m *Metrics) Gauge(name string) *Gauge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.gauges[name]
}

func (m *Metrics) CounterIncrement(name string) {
	if c := m.Counter(name); c != nil {
		c.Inc()
	}
}

func (m *Metrics) CounterAdd(name string, val uint64) {
	if c := m.Counter(name); c != nil {
		c.Add(val)
	}
}

func (m *Metrics) GaugeIncrement(name string) {
	if g := m.Gauge(name); g != nil {
		g.Inc()
	}
}

func (m *Metrics) GaugeDecrement(name string) {
	if g := m.Gauge(name); g != nil {
		g.Dec()
	}
}

func (m *Metrics) GaugeSet(name string, val uint64) {
	if g := m.Gauge(name); g != nil {
		g.Set(val)
	}
}

func (m *Metrics) EachCounter(f func(c *Counter)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, counter := range m.counters {
		f(counter)
	}
}

func (m *Metrics) EachGauge(f func(g *Gauge)) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, gauge := range m.gauges {
		f(gauge)
	}
}

// IntervalSnapshot returns counter deltas for the last interval and current gauge values
func (m *Metrics) IntervalSnapshot() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]uint64, len(m.counters)+len(m.gauges))

	for name, c := range m.counters {
		snapshot[name] = c.IntervalValue()
	}

	for name, g := range m.gauges {
		snapshot[name] = g.Value()
	}

	return snapshot
}

func (m *Metrics) rotate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.counters {
		c.UpdateDelta()
	}
}
