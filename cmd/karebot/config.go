package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	Addr           string        `yaml:"addr"`
	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	NewsURL        string        `yaml:"news_url"`
	NewsTimeout    time.Duration `yaml:"news_timeout"`
	ReplyDelay     time.Duration `yaml:"reply_delay"`
}

// LoadConfig loads configuration from a YAML file and environment variables.
// Environment variables override YAML values.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Addr:           ":8080",
		BackendTimeout: 15 * time.Second,
		NewsTimeout:    10 * time.Second,
		ReplyDelay:     500 * time.Millisecond,
	}

	// Load from YAML file if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" { // Heroku-style
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("KAREBOT_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("KAREBOT_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BackendTimeout = d
		}
	}
	if v := os.Getenv("KAREBOT_NEWS_URL"); v != "" {
		cfg.NewsURL = v
	}
	if v := os.Getenv("KAREBOT_NEWS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NewsTimeout = d
		}
	}
	if v := os.Getenv("KAREBOT_REPLY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReplyDelay = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration fields are in range.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required (set ADDR or yaml)")
	}
	if c.BackendTimeout <= 0 {
		return errors.New("backend_timeout must be positive")
	}
	if c.NewsTimeout <= 0 {
		return errors.New("news_timeout must be positive")
	}
	if c.ReplyDelay < 0 {
		return errors.New("reply_delay must not be negative")
	}
	return nil
}
