// Package config loads settings from defaults, an optional YAML file and
// FLUFFY_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FLUFFY_"

var ErrMissingToken = errors.New("api token is not set, use api.token or FLUFFY_API_TOKEN")

type Config struct {
	API       APIConfig       `koanf:"api"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	DB        DBConfig        `koanf:"db"`
	Cache     CacheConfig     `koanf:"cache"`
	Events    EventsConfig    `koanf:"events"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Collector CollectorConfig `koanf:"collector"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type APIConfig struct {
	BaseURL       string        `koanf:"base_url"`
	Token         string        `koanf:"token"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond int           `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json
}

type DBConfig struct {
	URL       string `koanf:"url"`
	AuthToken string `koanf:"auth_token"`
}

type CacheConfig struct {
	StatusTTL time.Duration `koanf:"status_ttl"`
}

type EventsConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type WorkflowConfig struct {
	ShipType  string        `koanf:"ship_type"`
	SaleDelay time.Duration `koanf:"sale_delay"`
}

// CollectorConfig controls the agent history snapshots. An interval of 0
// turns the collector off.
type CollectorConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type TelemetryConfig struct {
	Exporter string `koanf:"exporter"` // none, stdout
}

var defaults = map[string]any{
	"api.base_url":        "https://api.spacetraders.io/v2",
	"api.timeout":         "10s",
	"api.rate_per_second": 2,
	"api.burst":           30,
	"server.addr":         ":8845",
	"log.level":           "info",
	"log.format":          "text",
	"db.url":              "file:fluffy-miner.db",
	"cache.status_ttl":    "10s",
	"events.interval":     "2s",
	"workflow.ship_type":  "SHIP_MINING_DRONE",
	"workflow.sale_delay": "600ms",
	"collector.interval":  "5m",
	"telemetry.exporter":  "none",
}

// Load reads path (if not empty) over the defaults, then the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// FLUFFY_API_BASE_URL -> api.base_url
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps an environment variable to a key: the first underscore after
// the prefix separates the section, the rest belong to the key name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func (c *Config) Validate() error {
	if c.API.Token == "" {
		return ErrMissingToken
	}
	if c.API.RatePerSecond <= 0 || c.API.Burst <= 0 {
		return fmt.Errorf("api.rate_per_second and api.burst must be positive, got %d and %d", c.API.RatePerSecond, c.API.Burst)
	}
	if c.Events.Interval <= 0 {
		return fmt.Errorf("events.interval must be positive, got %s", c.Events.Interval)
	}
	if c.Collector.Interval < 0 {
		return fmt.Errorf("collector.interval must not be negative, got %s", c.Collector.Interval)
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown telemetry.exporter %q", c.Telemetry.Exporter)
	}
	return nil
}
