// Package redis contains the Redis connection configuration shared by the Redis-backed stores
package redis

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"
)

// Config contains Redis connection configuration
type Config struct {
	// Redis instance URL or master name in case of sentinels usage
	// or list of URLs if cluster usage
	URL string `toml:"url"`
	// Prefix for every key written by the stores
	KeyPrefix string `toml:"key_prefix"`
	// List of Redis Sentinel addresses
	Sentinels string `toml:"sentinels"`
	// Redis keepalive ping interval (seconds)
	KeepalivePingInterval int `toml:"keepalive_ping_interval"`
	// Whether to check server's certificate for validity (in case of rediss:// protocol)
	TLSVerify bool `toml:"tls_verify"`
	// Disable client-side caching
	DisableCache bool `toml:"disable_cache"`

	// List of hosts to connect
	hosts []string
	// Sentinel Master host to connect
	sentinelMaster string

	mu sync.RWMutex
}

// NewConfig builds a new Redis config with defaults
func NewConfig() Config {
	return Config{
		URL:                   "redis://localhost:6379",
		KeyPrefix:             "relaycast",
		KeepalivePingInterval: 30,
		DisableCache:          true,
	}
}

func (config *Config) IsCluster() bool {
	config.mu.RLock()
	defer config.mu.RUnlock()

	return len(config.hosts) > 1 && config.Sentinels == "" && config.sentinelMaster == ""
}

func (config *Config) IsSentinel() bool {
	config.mu.RLock()
	defer config.mu.RUnlock()

	return config.Sentinels != "" || config.sentinelMaster != ""
}

func (config *Config) Hostnames() []string {
	config.mu.RLock()
	defer config.mu.RUnlock()

	return config.hosts
}

// Key returns the prefixed store key
func (config *Config) Key(parts ...string) string {
	if config.KeyPrefix == "" {
		return strings.Join(parts, ":")
	}

	return config.KeyPrefix + ":" + strings.Join(parts, ":")
}

func (config *Config) ToRueidisOptions() (options *rueidis.ClientOption, err error) {
	if config.IsSentinel() {
		options, err = config.parseSentinels()
	} else {
		options, err = parseRedisURL(config.URL)
	}

	if err != nil {
		return nil, err
	}

	config.mu.Lock()
	config.hosts = append([]string{}, options.InitAddress...)
	config.sentinelMaster = options.Sentinel.MasterSet
	config.mu.Unlock()

	options.Dialer.KeepAlive = time.Duration(config.KeepalivePingInterval) * time.Second

	options.ShuffleInit = config.IsCluster()

	if options.TLSConfig != nil {
		options.TLSConfig.InsecureSkipVerify = !config.TLSVerify
	}

	options.DisableCache = config.DisableCache

	return options, nil
}

func (config *Config) parseSentinels() (*rueidis.ClientOption, error) {
	config.mu.RLock()
	defer config.mu.RUnlock()

	master, err := url.Parse(config.URL)

	if err != nil {
		return nil, err
	}

	options, err := parseRedisURL(config.Sentinels)

	if err != nil {
		return nil, err
	}

	options.Sentinel.MasterSet = master.Host

	return options, nil
}

func (config *Config) ToToml() string {
	config.mu.RLock()
	defer config.mu.RUnlock()

	var result strings.Builder

	result.WriteString("# Redis instance URL or master name in case of sentinels usage\n")
	result.WriteString("# or list of URLs if cluster usage\n")
	result.WriteString(fmt.Sprintf("url = \"%s\"\n", config.URL))

	result.WriteString("# Prefix for presence, history and subscription keys\n")
	result.WriteString(fmt.Sprintf("key_prefix = \"%s\"\n", config.KeyPrefix))

	result.WriteString("# Sentinel addresses (comma-separated list)\n")
	result.WriteString(fmt.Sprintf("sentinels = \"%s\"\n", config.Sentinels))

	result.WriteString("# Keepalive ping interval (seconds)\n")
	result.WriteString(fmt.Sprintf("keepalive_ping_interval = %d\n", config.KeepalivePingInterval))

	result.WriteString("# Enable TLS Verify\n")
	if config.TLSVerify {
		result.WriteString(fmt.Sprintf("tls_verify = %t\n", config.TLSVerify))
	} else {
		result.WriteString("# tls_verify = true\n")
	}

	result.WriteString("# Disable client-side caching\n")
	result.WriteString(fmt.Sprintf("disable_cache = %t\n", config.DisableCache))

	result.WriteString("\n")

	return result.String()
}

func parseRedisURL(url string) (options *rueidis.ClientOption, err error) {
	for _, addr := range strings.Split(url, ",") {
		// rueidis rejects hostnames with a trailing slash, redis-cli accepts them
		addr = strings.TrimSuffix(addr, "/")

		current, err := rueidis.ParseURL(ensureRedisScheme(addr))

		if err != nil {
			return nil, err
		}

		if options == nil {
			options = &current
		} else {
			options.InitAddress = append(options.InitAddress, current.InitAddress...)
		}
	}

	return options, nil
}

func ensureRedisScheme(url string) string {
	if strings.Contains(url, "://") {
		return url
	}

	return "redis://" + url
}
