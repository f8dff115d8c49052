package logger

import (
	"fmt"
	"strings"
)

type Config struct {
	LogLevel  string `toml:"level"`
	LogFormat string `toml:"format"`
	Debug     bool   `toml:"debug"`
}

func NewConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Level returns the effective log level: debug mode overrides the configured one
func (c Config) Level() string {
	if c.Debug {
		return "debug"
	}

	return c.LogLevel
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Log level (debug, info, warn, error, fatal)\n")
	result.WriteString(fmt.Sprintf("level = %q\n", c.LogLevel))

	result.WriteString("# Log format (text, json)\n")
	result.WriteString(fmt.Sprintf("format = %q\n", c.LogFormat))

	result.WriteString("# Enable debug mode (verbose logging)\n")
	if c.Debug {
		result.WriteString("debug = true\n")
	} else {
		result.WriteString("# debug = true\n")
	}

	result.WriteString("\n")

	return result.String()
}
