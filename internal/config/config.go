// Package config loads engine configuration from the environment, optional
// .env files, or a YAML file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults applied when a setting is not configured.
const (
	DefaultDatabasePath = "radiodex.db"
	DefaultServerPort   = "8080"
	DefaultUserAgent    = "Radiodex/1.0 (+https://github.com/radiodex/radiodex)"
	DefaultFetchTimeout = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second
	DefaultRevalidate   = 24 * time.Hour
	DefaultConcurrency  = 5
)

// Config holds application configuration.
type Config struct {
	// DatabasePath is the SQLite catalog file.
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	ServerPort   string `yaml:"server_port" env:"SERVER_PORT"`

	// DirectoryURL is the upstream YP directory listing. When empty, no
	// ingestion runs and the engine only serves the existing catalog.
	DirectoryURL string        `yaml:"directory_url" env:"DIRECTORY_URL"`
	UserAgent    string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FETCHER_TIMEOUT"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`

	IngestConcurrency  int           `yaml:"ingest_concurrency" env:"INGEST_CONCURRENCY"`
	RevalidateInterval time.Duration `yaml:"revalidate_interval" env:"REVALIDATE_INTERVAL"`

	// RedisURL enables the read cache, cross-instance job locks, and shared
	// play-report throttling. Optional.
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// Load builds config from environment variables. If DATABASE_PATH is not set,
// Load tries .env.local and .env from the current directory first. Every
// setting has a default, so Load cannot fail on missing values.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_PATH") == "" {
		loadEnvFiles()
	}
	c := &Config{
		DatabasePath: os.Getenv("DATABASE_PATH"),
		ServerPort:   os.Getenv("SERVER_PORT"),
		DirectoryURL: os.Getenv("DIRECTORY_URL"),
		UserAgent:    os.Getenv("FETCHER_USER_AGENT"),
		RedisURL:     os.Getenv("REDIS_URL"),
	}
	if s := os.Getenv("FETCHER_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.FetchTimeout = d
		}
	}
	if s := os.Getenv("PROBE_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.ProbeTimeout = d
		}
	}
	if s := os.Getenv("REVALIDATE_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			c.RevalidateInterval = d
		}
	}
	if s := os.Getenv("INGEST_CONCURRENCY"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			c.IngestConcurrency = n
		}
	}
	c.applyDefaults()
	return c, nil
}

// applyDefaults fills zero-valued settings.
func (c *Config) applyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.ServerPort == "" {
		c.ServerPort = DefaultServerPort
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = DefaultRevalidate
	}
	if c.IngestConcurrency <= 0 {
		c.IngestConcurrency = DefaultConcurrency
	}
}
