package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	prometheusNamespace = "relaycast"
)

// collector exposes the registry counters and gauges as Prometheus metrics.
// Metrics are collected unchecked since the set of names grows at runtime.
type collector struct {
	metrics *Metrics
}

var _ prometheus.Collector = (*collector)(nil)

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	labels := prometheus.Labels(c.metrics.Tags())

	c.metrics.EachCounter(func(counter *Counter) {
		desc := prometheus.NewDesc(prometheus.BuildFQName(prometheusNamespace, "", counter.Name()), counter.Desc(), nil, labels)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(counter.Value()))
	})

	c.metrics.EachGauge(func(gauge *Gauge) {
		desc := prometheus.NewDesc(prometheus.BuildFQName(prometheusNamespace, "", gauge.Name()), gauge.Desc(), nil, labels)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(gauge.Value()))
	})
}

// PrometheusRegistry returns a dedicated registry with the instance metrics and the Go runtime collectors
func (m *Metrics) PrometheusRegistry() *prometheus.Registry {
	m.promOnce.Do(func() {
		registry := prometheus.NewRegistry()

		registry.MustRegister(&collector{metrics: m})
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		m.promRegistry = registry
	})

	return m.promRegistry
}

// PrometheusHandler serves the metrics in the Prometheus text format
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.PrometheusRegistry(), promhttp.HandlerOpts{})
}

// Names returns the names of all registered metrics
func (m *Metrics) Names() []string {
	names := make([]string, 0)

	m.EachCounter(func(c *Counter) { names = append(names, c.Name()) })
	m.EachGauge(func(g *Gauge) { names = append(names, g.Name()) })

	sort.Strings(names)

	return names
}
