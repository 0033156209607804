// Package config loads the application configuration from a YAML file.
// Environment variable references in the file (${VAR} or $VAR) are expanded
// before parsing, so secrets can stay out of the config file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Timezone   string           `yaml:"timezone"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type DispatchConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	MaxRetries    int           `yaml:"max_retries"`
}

type MonitoringConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads and parses the config file at path, applying defaults for
// fields left empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/hydromate.db"
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.Dispatch.CheckInterval == 0 {
		c.Dispatch.CheckInterval = 30 * time.Second
	}
	if c.Dispatch.RatePerSecond == 0 {
		c.Dispatch.RatePerSecond = 25
	}
	if c.Dispatch.Burst == 0 {
		c.Dispatch.Burst = 5
	}
	if c.Dispatch.MaxRetries == 0 {
		c.Dispatch.MaxRetries = 3
	}
	if c.Monitoring.MetricsAddr == "" {
		c.Monitoring.MetricsAddr = ":9090"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}
