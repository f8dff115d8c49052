package server

import (
	"fmt"
	"strings"
)

type Config struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Comma-separated list of origins allowed to call the ingress endpoint from browsers
	AllowedOrigins string `toml:"allowed_origins"`
	HealthPath     string `toml:"health_path"`
	// Read and write timeouts (seconds)
	ReadTimeout  int       `toml:"read_timeout"`
	WriteTimeout int       `toml:"write_timeout"`
	SSL          SSLConfig `toml:"ssl"`
}

func NewConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         8080,
		HealthPath:   "/health",
		ReadTimeout:  10,
		WriteTimeout: 30,
		SSL:          NewSSLConfig(),
	}
}

// Origins returns the list of allowed origins
func (c Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.AllowedOrigins, ",")

	for i, origin := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(origin))
	}

	return origins
}

func (c Config) ToToml() string {
	var result strings.Builder

	result.WriteString("# Host address to bind to\n")
	result.WriteString(fmt.Sprintf("host = %q\n", c.Host))
	result.WriteString("# Port to listen on\n")
	result.WriteString(fmt.Sprintf("port = %d\n", c.Port))

	result.WriteString("# Allowed origins (a comma-separated list)\n")
	result.WriteString(fmt.Sprintf("allowed_origins = \"%s\"\n", c.AllowedOrigins))

	result.WriteString("# Health check endpoint path\n")
	result.WriteString(fmt.Sprintf("health_path = %q\n", c.HealthPath))

	result.WriteString("# Request read timeout (seconds)\n")
	result.WriteString(fmt.Sprintf("read_timeout = %d\n", c.ReadTimeout))
	result.WriteString("# Response write timeout (seconds)\n")
	result.WriteString(fmt.Sprintf("write_timeout = %d\n", c.WriteTimeout))

	result.WriteString("# SSL configuration\n")

	if c.SSL.CertPath != "" {
		result.WriteString(fmt.Sprintf("ssl.cert_path = %q\n", c.SSL.CertPath))
	} else {
		result.WriteString("# ssl.cert_path =\n")
	}

	if c.SSL.KeyPath != "" {
		result.WriteString(fmt.Sprintf("ssl.key_path = %q\n", c.SSL.KeyPath))
	} else {
		result.WriteString("# ssl.key_path =\n")
	}

	result.WriteString("\n")

	return result.String()
}
