package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the optional monitoring section is missing.
const (
	DefaultRedisAddr    = "localhost:6379"
	DefaultInterval     = "15m"
	DefaultSampleWindow = 10
)

// KeelConfig represents the top-level keel.yml configuration
type KeelConfig struct {
	Version      string            `yaml:"version"`
	Project      ProjectConfig     `yaml:"project"`
	Redis        *RedisConfig      `yaml:"redis,omitempty"`
	Monitoring   *MonitoringConfig `yaml:"monitoring,omitempty"`
	Stakeholders []string          `yaml:"stakeholders,omitempty"` // Notified during emergency/intervention resolutions
}

// ProjectConfig names the project whose ledger namespace this config drives
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// RedisConfig specifies the ledger's Redis connection
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MonitoringConfig specifies drift monitor behaviour
type MonitoringConfig struct {
	Interval     string `yaml:"interval,omitempty"`      // Go duration, e.g. "15m"
	SampleWindow int    `yaml:"sample_window,omitempty"` // Items sampled per category check
}

// Validate performs strict validation on the configuration and applies
// defaults for the optional sections.
func (c *KeelConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: project name
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Monitoring == nil {
		c.Monitoring = &MonitoringConfig{}
	}
	if c.Monitoring.Interval == "" {
		c.Monitoring.Interval = DefaultInterval
	}
	if c.Monitoring.SampleWindow == 0 {
		c.Monitoring.SampleWindow = DefaultSampleWindow
	}
	if c.Monitoring.SampleWindow < 1 {
		return fmt.Errorf("monitoring.sample_window must be >= 1, got %d", c.Monitoring.SampleWindow)
	}

	interval, err := time.ParseDuration(c.Monitoring.Interval)
	if err != nil {
		return fmt.Errorf("monitoring.interval is not a valid duration: %s", c.Monitoring.Interval)
	}
	if interval < time.Minute {
		return fmt.Errorf("monitoring.interval must be at least 1m, got %s", c.Monitoring.Interval)
	}

	return nil
}

// Interval returns the parsed monitoring interval. Only valid after
// Validate has succeeded.
func (c *KeelConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(c.Monitoring.Interval)
	return d
}

// Load reads and validates keel.yml from the specified path
func Load(path string) (*KeelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config KeelConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
