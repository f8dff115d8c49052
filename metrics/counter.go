package metrics

import "sync/atomic"

// Counter stores a monotonically increasing value and its delta over the last rotation interval
type Counter struct {
	name              string
	desc              string
	value             uint64
	lastIntervalValue uint64
	lastIntervalDelta uint64
}

func NewCounter(name string, desc string) *Counter {
	return &Counter{name: name, desc: desc}
}

func (c *Counter) Name() string {
	return c.name
}

func (c *Counter) Desc() string {
	return c.desc
}

func (c *Counter) Value() uint64 {
	return atomic.LoadUint64(&c.value)
}

// IntervalValue returns the counter delta for the last rotation interval
func (c *Counter) IntervalValue() uint64 {
	return atomic.LoadUint64(&c.lastIntervalDelta)
}

func (c *Counter) Inc() uint64 {
	return c.Add(1)
}

func (c *Counter) Add(n uint64) uint64 {
	return atomic.AddUint64(&c.value, n)
}

// UpdateDelta stores the difference between the current value and the one at the previous call
func (c *Counter) UpdateDelta() {
	now := atomic.LoadUint64(&c.value)
	atomic.StoreUint64(&c.lastIntervalDelta, now-atomic.LoadUint64(&c.lastIntervalValue))
	atomic.StoreUint64(&c.lastIntervalValue, now)
}
