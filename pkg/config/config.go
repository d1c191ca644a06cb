// Package config loads gateway configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nihonguide/travel-api-client/pkg/batch"
	"github.com/nihonguide/travel-api-client/pkg/client"
	"github.com/nihonguide/travel-api-client/pkg/coalesce"
	"github.com/nihonguide/travel-api-client/pkg/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvBaseURL  = "TRAVEL_API_BASE_URL"
	EnvAPIKey   = "TRAVEL_API_KEY"
	EnvCurrency = "TRAVEL_API_CURRENCY"
	EnvRedisURL = "REDIS_URL"
	EnvRedisNS  = "REDIS_NAMESPACE"
	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvPretty   = "LOG_PRETTY"
)

// Config is the full gateway configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Batch   BatchConfig   `yaml:"batch"`
}

// APIConfig holds upstream API settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Currency       string        `yaml:"currency"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SubmitTimeout  time.Duration `yaml:"submit_timeout"`
	CoalesceWindow time.Duration `yaml:"coalesce_window"`
	MaxRetries     *int          `yaml:"max_retries"`
}

// RedisConfig holds the shared tier settings. An empty URL disables it.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// BatchConfig holds listing-page fan-out settings.
type BatchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:3000",
			Currency:       "JPY",
			UserAgent:      "travel-api-client/1.0",
			RequestTimeout: 30 * time.Second,
			SubmitTimeout:  10 * time.Second,
			CoalesceWindow: coalesce.DefaultWindow,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Batch: BatchConfig{
			MaxConcurrency: 5,
			Timeout:        15 * time.Second,
		},
	}
}

// Load reads path, applies environment overrides, then fills defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv(EnvCurrency); v != "" {
		c.API.Currency = strings.ToUpper(v)
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv(EnvRedisNS); v != "" {
		c.Redis.Namespace = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPretty, v, err)
		}
		c.Logging.Pretty = pretty
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.API.Currency == "" {
		c.API.Currency = d.API.Currency
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = d.API.UserAgent
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = d.API.RequestTimeout
	}
	if c.API.SubmitTimeout <= 0 {
		c.API.SubmitTimeout = d.API.SubmitTimeout
	}
	if c.API.CoalesceWindow == 0 {
		c.API.CoalesceWindow = d.API.CoalesceWindow
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Batch.MaxConcurrency <= 0 {
		c.Batch.MaxConcurrency = d.Batch.MaxConcurrency
	}
	if c.Batch.Timeout <= 0 {
		c.Batch.Timeout = d.Batch.Timeout
	}
}

// Validate checks values that would otherwise fail later at startup.
// A missing API key is allowed; the client reports it per call.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.API.MaxRetries != nil && *c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0 (got %d)", *c.API.MaxRetries)
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ClientConfig builds the client configuration. The Redis field is left for
// the caller to set.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.BaseURL, c.API.APIKey)
	cfg.Currency = c.API.Currency
	cfg.UserAgent = c.API.UserAgent
	cfg.RequestTimeout = c.API.RequestTimeout
	cfg.SubmitTimeout = c.API.SubmitTimeout
	cfg.CoalesceWindow = c.API.CoalesceWindow
	cfg.SharedNamespace = c.Redis.Namespace
	if c.API.MaxRetries != nil {
		cfg.Retry.MaxRetries = *c.API.MaxRetries
	}
	return cfg
}

// RedisOptions parses the Redis URL. It returns nil when Redis is disabled.
// Both "redis://host:port/db" and bare "host:port" forms are accepted.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, nil
	}
	if !strings.Contains(c.Redis.URL, "://") {
		return &redis.Options{Addr: c.Redis.URL}, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// LoggingConfig returns the logger setup for this configuration.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}

// BatchConfig returns the batch fetcher configuration.
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		MaxConcurrency: c.Batch.MaxConcurrency,
		Timeout:        c.Batch.Timeout,
	}
}
