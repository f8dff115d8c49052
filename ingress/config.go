package ingress

import (
	"fmt"
	"strings"
)

type Config struct {
	// HTTP path to accept signed events at
	Path string `toml:"path"`
	// Max request body size (bytes)
	MaxBodySize int64 `toml:"max_body_size"`
	// Allowed difference between the event timestamp and the receipt time (seconds)
	TimestampTolerance int `toml:"timestamp_tolerance"`
}

func NewConfig() Config {
	return Config{
		Path:               "/events",
		MaxBodySize:        64 * 1024,
		TimestampTolerance: 30,
	}
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# HTTP path to accept signed events at\n")
	result.WriteString(fmt.Sprintf("path = \"%s\"\n", c.Path))

	result.WriteString("# Max request body size (bytes)\n")
	result.WriteString(fmt.Sprintf("max_body_size = %d\n", c.MaxBodySize))

	result.WriteString("# Allowed difference between the event timestamp and the receipt time (seconds)\n")
	result.WriteString(fmt.Sprintf("timestamp_tolerance = %d\n", c.TimestampTolerance))

	result.WriteString("\n")

	return result.String()
}
