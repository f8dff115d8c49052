package metrics

import (
	"fmt"
	"strings"
)

type Config struct {
	// Print metrics to the log every rotation interval
	Log bool `toml:"log"`
	// Counter deltas are computed over this interval (seconds)
	RotateInterval int `toml:"rotate_interval"`
	// Print only specified metrics
	LogFilter []string `toml:"log_filter"`
	// Prometheus endpoint path on the main HTTP server; empty to disable
	HTTP string            `toml:"http_path"`
	Tags map[string]string `toml:"tags"`

	Statsd StatsdConfig `toml:"statsd"`
}

func NewConfig() Config {
	return Config{
		RotateInterval: 15,
		HTTP:           "/metrics",
		Statsd:         NewStatsdConfig(),
	}
}

func (c *Config) HTTPEnabled() bool {
	return c.HTTP != ""
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Prometheus endpoint path (empty to disable)\n")
	result.WriteString(fmt.Sprintf("http_path = \"%s\"\n", c.HTTP))

	result.WriteString("# Enable metrics logging\n")
	if c.Log {
		result.WriteString("log = true\n")
	} else {
		result.WriteString("# log = true\n")
	}

	result.WriteString("# Rotation interval (seconds)\n")
	result.WriteString(fmt.Sprintf("rotate_interval = %d\n", c.RotateInterval))

	result.WriteString("# Log filter (show only selected metrics)\n")
	if len(c.LogFilter) > 0 {
		result.WriteString(fmt.Sprintf("log_filter = [ \"%s\" ]\n", strings.Join(c.LogFilter, "\", \"")))
	} else {
		result.WriteString("# log_filter = []\n")
	}

	result.WriteString("# Metrics tags\n")
	if len(c.Tags) > 0 {
		for key, value := range c.Tags {
			result.WriteString(fmt.Sprintf("tags.%s = \"%s\"\n", key, value))
		}
	} else {
		result.WriteString("# tags.key = \"value\"\n")
	}

	result.WriteString("\n[metrics.statsd]\n")
	result.WriteString(c.Statsd.ToToml())

	return result.String()
}
