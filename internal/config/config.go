// Package config loads the gateway configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the complete gateway configuration.
type Config struct {
	Port        int    `env:"PORT" envDefault:"3000"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`

	OriginURL     string        `env:"RICK_AND_MORTY_API_URL" envDefault:"https://rickandmortyapi.com/api"`
	OriginTimeout time.Duration `env:"ORIGIN_TIMEOUT" envDefault:"10s"`
	UserAgent     string        `env:"USER_AGENT" envDefault:"rickmorty-gateway/0.1.0"`

	// CacheTTLSeconds is the lifetime of cached origin payloads.
	CacheTTLSeconds    int           `env:"CACHE_TTL" envDefault:"900"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
	CacheSingleFlight  bool          `env:"CACHE_SINGLE_FLIGHT" envDefault:"true"`
	CacheWarmResources []string      `env:"CACHE_WARM_RESOURCES" envSeparator:","`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitWindowMS    int  `env:"RATE_LIMIT_WINDOW_MS" envDefault:"900000"`
	RateLimitMaxRequests int  `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	TrustProxy           bool `env:"TRUST_PROXY" envDefault:"false"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.RedisHost = strings.TrimSpace(c.RedisHost)

	resources := c.CacheWarmResources[:0]
	for _, r := range c.CacheWarmResources {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			resources = append(resources, r)
		}
	}
	c.CacheWarmResources = resources
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1-65535, got %d", c.Port))
	}
	if u, err := url.Parse(c.OriginURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("RICK_AND_MORTY_API_URL is not an absolute URL: %q", c.OriginURL))
	}
	if c.OriginTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ORIGIN_TIMEOUT must be positive, got %s", c.OriginTimeout))
	}
	if c.CacheTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %d", c.CacheTTLSeconds))
	}
	if c.CacheSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %s", c.CacheSweepInterval))
	}
	for _, r := range c.CacheWarmResources {
		switch r {
		case "character", "episode", "location":
		default:
			errs = append(errs, fmt.Errorf("CACHE_WARM_RESOURCES: unknown resource %q", r))
		}
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be 1-65535, got %d", c.RedisPort))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.RedisDB))
	}
	if c.RateLimitWindowMS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW_MS must be positive, got %d", c.RateLimitWindowMS))
	}
	if c.RateLimitMaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive, got %d", c.RateLimitMaxRequests))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// CacheTTL returns the cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RateLimitWindow returns the rate-limit window as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// RedisEnabled reports whether a Redis endpoint is configured.
func (c Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// RedisAddr returns host:port of the Redis endpoint, or "" when not configured.
func (c Config) RedisAddr() string {
	if !c.RedisEnabled() {
		return ""
	}
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}
