package metrics

// NoopMetrics drops every observation. Components use it until an
// instrumenter is provided
type NoopMetrics struct{}

var _ Instrumenter = NoopMetrics{}

func (NoopMetrics) RegisterCounter(string, string) {}
func (NoopMetrics) RegisterGauge(string, string) {}

func (NoopMetrics) CounterIncrement(string) {}
func (NoopMetrics) CounterAdd(string, uint64) {}

func (NoopMetrics) GaugeSet(string, uint64) {}
func (NoopMetrics) GaugeIncrement(string) {}
func (NoopMetrics) GaugeDecrement(string) {}
