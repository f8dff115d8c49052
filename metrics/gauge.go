package metrics

import "sync/atomic"

// Gauge stores an arbitrary non-negative value
type Gauge struct {
	name  string
	desc  string
	value uint64
}

func NewGauge(name string, desc string) *Gauge {
	return &Gauge{name: name, desc: desc}
}

func (g *Gauge) Name() string {
	return g.name
}

func (g *Gauge) Desc() string {
	return g.desc
}

func (g *Gauge) Set(value uint64) {
	atomic.StoreUint64(&g.value, value)
}

func (g *Gauge) Inc() uint64 {
	return atomic.AddUint64(&g.value, 1)
}

// Dec decrements the gauge, never going below zero
func (g *Gauge) Dec() uint64 {
	for {
		current := atomic.LoadUint64(&g.value)

		if current == 0 {
			return 0
		}

		if atomic.CompareAndSwapUint64(&g.value, current, current-1) {
			return current - 1
		}
	}
}

func (g *Gauge) Value() uint64 {
	return atomic.LoadUint64(&g.value)
}
