// Package config loads configuration from environment variables, optionally
// overlaid by a YAML file named in CONFIG_FILE.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the metadata service root used when BASE_URL is unset.
const DefaultBaseURL = "http://localhost:8080/filemetadata"

// Config holds configuration for the server, web shell and CLI.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	AppName     string `yaml:"app_name"`
	RootDir     string `yaml:"root_dir"`
	Gzip        bool   `yaml:"gzip"`
	RateLimit   int    `yaml:"rate_limit"` // requests per minute per client, 0 = unlimited

	// Web shell
	WebAddr string `yaml:"web_addr"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Auth. When AuthSecret is set the server requires tokens.
	AuthSecret string `yaml:"auth_secret"`
	AuthToken  string `yaml:"auth_token"`

	// Client
	BaseURL       string        `yaml:"base_url"`
	ClientTimeout time.Duration `yaml:"client_timeout"`
}

// Load reads configuration from environment variables with defaults. When
// CONFIG_FILE is set, values from that file override the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		AppName:       envOr("APP_NAME", "file-metadata-server"),
		RootDir:       envOr("ROOT_DIR", ""),
		Gzip:          envBool("GZIP", true),
		RateLimit:     envInt("RATE_LIMIT", 0),
		WebAddr:       envOr("WEB_ADDR", ":4200"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		AuthSecret:    envOr("AUTH_SECRET", ""),
		AuthToken:     envOr("AUTH_TOKEN", ""),
		BaseURL:       envOr("BASE_URL", DefaultBaseURL),
		ClientTimeout: envDuration("CLIENT_TIMEOUT", 0),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays non-empty values from a YAML file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BASE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BASE_URL must be http or https, got %q", c.BaseURL)
	}
	if c.ClientTimeout < 0 {
		return fmt.Errorf("CLIENT_TIMEOUT must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
