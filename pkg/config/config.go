// Package config loads process configuration from flags and the environment.
package config

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/abdhe/resume-ai-gateway/pkg/cache"
	"github.com/abdhe/resume-ai-gateway/pkg/logging"
	"github.com/abdhe/resume-ai-gateway/pkg/provider"
	"github.com/abdhe/resume-ai-gateway/pkg/resilience"
)

// Config is the full process configuration. Every field can be set by flag
// or environment variable; flags win.
type Config struct {
	GRPCPort    string `name:"grpc-port" env:"GRPC_PORT" default:"50051" help:"gRPC listen port."`
	MetricsPort string `name:"metrics-port" env:"METRICS_PORT" default:"9090" help:"Prometheus metrics and health port."`

	ProvidersFile string `name:"providers-file" env:"PROVIDERS_FILE" help:"YAML provider catalog. Built-in providers are used when empty."`

	MaxRetries     int           `name:"max-retries" env:"MAX_RETRIES" default:"2" help:"HTTP attempts per provider."`
	RetryBaseDelay time.Duration `name:"retry-base-delay" env:"RETRY_BASE_DELAY" default:"1s" help:"Linear backoff step between attempts."`
	AttemptTimeout time.Duration `name:"attempt-timeout" env:"ATTEMPT_TIMEOUT" default:"30s" help:"Timeout for a single provider HTTP call."`
	RequestTimeout time.Duration `name:"request-timeout" env:"REQUEST_TIMEOUT" default:"120s" help:"Timeout for a whole RPC."`

	CBFailureThreshold int           `name:"cb-failure-threshold" env:"CB_FAILURE_THRESHOLD" default:"0" help:"Consecutive failures that open a provider's circuit. 0 disables the breaker."`
	CBCooldown         time.Duration `name:"cb-cooldown" env:"CB_COOLDOWN" default:"30s" help:"How long an open circuit stays open."`

	RedisAddr     string        `name:"redis-addr" env:"REDIS_ADDR" help:"Redis address for the completion cache. Caching is off when empty."`
	RedisPassword string        `name:"redis-password" env:"REDIS_PASSWORD" help:"Redis password."`
	RedisDB       int           `name:"redis-db" env:"REDIS_DB" default:"0" help:"Redis database."`
	CacheTTL      time.Duration `name:"cache-ttl" env:"CACHE_TTL" default:"1h" help:"Completion cache TTL."`

	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level."`
}

// Load parses args (without the program name) and the environment.
func Load(args []string, opts ...kong.Option) (*Config, error) {
	var cfg Config
	opts = append([]kong.Option{
		kong.Name("resumeai"),
		kong.Description("Resume AI gateway: LLM provider fallback over gRPC."),
	}, opts...)

	parser, err := kong.New(&cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Retry returns the effective retry settings. An explicit zero
// RETRY_BASE_DELAY is kept.
func (c *Config) Retry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:     c.MaxRetries,
		BaseDelay:      c.RetryBaseDelay,
		AttemptTimeout: c.AttemptTimeout,
	}.WithDefaults()
}

// Breaker returns the circuit breaker settings.
func (c *Config) Breaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.CBFailureThreshold,
		Cooldown:         c.CBCooldown,
	}
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

// Cache returns the Redis cache options.
func (c *Config) Cache() cache.Options {
	return cache.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		TTL:      c.CacheTTL,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	return lc
}

// Catalog loads ProvidersFile, or the built-in catalog when none is set.
func (c *Config) Catalog() (*provider.Catalog, error) {
	if c.ProvidersFile == "" {
		return provider.NewCatalog(provider.DefaultDescriptors())
	}
	return provider.LoadCatalogFile(c.ProvidersFile)
}
