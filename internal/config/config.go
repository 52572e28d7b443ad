// Package config loads server configuration from a YAML file,
// overridable by environment variables, the way the rest of this
// codebase's ambient stack favors explicit, typed settings over a
// sprawling flag set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete set of settings a server binary needs.
type Config struct {
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Server struct {
		Concurrency  int           `yaml:"concurrency"`
		Queues       []string      `yaml:"queues"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// defaults mirrors the values a freshly constructed Config should have
// before the file or environment override anything.
func defaults() *Config {
	c := &Config{}
	c.Redis.URL = "redis://127.0.0.1:6379/0"
	c.Server.Concurrency = 10
	c.Server.Queues = []string{"default"}
	c.Server.FetchTimeout = 2 * time.Second
	c.Metrics.Enabled = true
	c.Metrics.Addr = ":9091"
	c.Log.Level = "info"
	return c
}

// Load reads path (if it exists) as YAML over the defaults, then
// applies WORKHORSE_-prefixed environment overrides. A missing file at
// path is not an error: the defaults (plus env) are still valid.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WORKHORSE_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("WORKHORSE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Concurrency = n
		}
	}
	if v := os.Getenv("WORKHORSE_QUEUES"); v != "" {
		cfg.Server.Queues = strings.Split(v, ",")
	}
	if v := os.Getenv("WORKHORSE_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.FetchTimeout = d
		}
	}
	if v := os.Getenv("WORKHORSE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("WORKHORSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// LogLevel parses Log.Level into a slog.Level-compatible string. Kept
// as a method so callers configuring slog don't duplicate the mapping.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Log.Level)
}
