package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
)

func (c *Config) Presets() []string {
	if c.UserPresets != nil {
		return c.UserPresets
	}

	return detectPresetsFromEnv()
}

// LoadPresets adjusts the values left at their defaults to the detected (or requested) environment
func (c *Config) LoadPresets() error {
	presets := c.Presets()

	if len(presets) == 0 {
		return nil
	}

	log.WithField("context", "config").Infof("Load presets: %s", strings.Join(presets, ","))

	defaults := NewConfig()

	for _, preset := range presets {
		switch preset {
		case "fly":
			if err := c.loadFlyPreset(&defaults); err != nil {
				return err
			}
		case "heroku":
			if err := c.loadHerokuPreset(&defaults); err != nil {
				return err
			}
		case "memory":
			c.loadMemoryPreset(&defaults)
		default:
			return errorx.IllegalArgument.New("unknown preset: %s", preset)
		}
	}

	return nil
}

func (c *Config) loadFlyPreset(defaults *Config) error {
	if c.Server.Host == defaults.Server.Host {
		c.Server.Host = "0.0.0.0"
	}

	allocID, ok := os.LookupEnv("FLY_ALLOC_ID")

	if !ok {
		return errorx.IllegalArgument.New("FLY_ALLOC_ID env is missing")
	}

	// Shard queues must not be shared between machines
	if c.ID == defaults.ID {
		c.ID = allocID
	}

	if region, ok := os.LookupEnv("FLY_REGION"); ok {
		if _, exists := c.Metrics.Tags["region"]; !exists {
			if c.Metrics.Tags == nil {
				c.Metrics.Tags = map[string]string{}
			}

			c.Metrics.Tags["region"] = region
		}
	}

	return nil
}

func (c *Config) loadHerokuPreset(defaults *Config) error {
	if c.Server.Host == defaults.Server.Host {
		c.Server.Host = "0.0.0.0"
	}

	if c.Server.Port == defaults.Server.Port {
		if herokuPortStr := os.Getenv("PORT"); herokuPortStr != "" {
			herokuPort, err := strconv.Atoi(herokuPortStr)
			if err != nil {
				return errorx.Decorate(err, "invalid PORT value")
			}

			c.Server.Port = herokuPort
		}
	}

	if c.ID == defaults.ID {
		if dynoID := os.Getenv("HEROKU_DYNO_ID"); dynoID != "" {
			c.ID = dynoID
		}
	}

	return nil
}

// Single process setup: nothing but the process itself is required
func (c *Config) loadMemoryPreset(defaults *Config) {
	if c.Broker.Adapter == defaults.Broker.Adapter {
		c.Broker.Adapter = "memory"
	}

	if c.Store.Adapter == defaults.Store.Adapter {
		c.Store.Adapter = "memory"
	}

	if c.Store.Credentials == defaults.Store.Credentials {
		c.Store.Credentials = "memory"
	}
}

func detectPresetsFromEnv() []string {
	presets := []string{}

	if isFlyEnv() {
		presets = append(presets, "fly")
	}

	if isHerokuEnv() {
		presets = append(presets, "heroku")
	}

	return presets
}

func isFlyEnv() bool {
	if _, ok := os.LookupEnv("FLY_APP_NAME"); !ok {
		return false
	}

	if _, ok := os.LookupEnv("FLY_ALLOC_ID"); !ok {
		return false
	}

	if _, ok := os.LookupEnv("FLY_REGION"); !ok {
		return false
	}

	return true
}

func isHerokuEnv() bool {
	if _, ok := os.LookupEnv("HEROKU_APP_ID"); !ok {
		return false
	}

	if _, ok := os.LookupEnv("HEROKU_DYNO_ID"); !ok {
		return false
	}

	return true
}
