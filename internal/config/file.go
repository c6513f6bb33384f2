package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabasePath       string `yaml:"database_path"`
	ServerPort         string `yaml:"server_port"`
	DirectoryURL       string `yaml:"directory_url"`
	UserAgent          string `yaml:"user_agent"`
	FetchTimeout       string `yaml:"fetch_timeout"`
	ProbeTimeout       string `yaml:"probe_timeout"`
	IngestConcurrency  string `yaml:"ingest_concurrency"`
	RevalidateInterval string `yaml:"revalidate_interval"`
	RedisURL           string `yaml:"redis_url"`
}

// LoadFromFile loads config from a YAML file. Durations are parsed with
// time.ParseDuration; invalid values are an error rather than silently
// defaulted, unlike the more forgiving environment loader.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c := &Config{
		DatabasePath: f.DatabasePath,
		ServerPort:   f.ServerPort,
		DirectoryURL: f.DirectoryURL,
		UserAgent:    f.UserAgent,
		RedisURL:     f.RedisURL,
	}
	if c.FetchTimeout, err = parseDuration(f.FetchTimeout, "fetch_timeout"); err != nil {
		return nil, err
	}
	if c.ProbeTimeout, err = parseDuration(f.ProbeTimeout, "probe_timeout"); err != nil {
		return nil, err
	}
	if c.RevalidateInterval, err = parseDuration(f.RevalidateInterval, "revalidate_interval"); err != nil {
		return nil, err
	}
	if f.IngestConcurrency != "" {
		n, err := strconv.Atoi(f.IngestConcurrency)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid ingest_concurrency: %s", f.IngestConcurrency)
		}
		c.IngestConcurrency = n
	}
	c.applyDefaults()
	return c, nil
}

func parseDuration(s, name string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, s)
	}
	return d, nil
}
