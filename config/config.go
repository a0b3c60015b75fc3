package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/entitycache/cache"
	"github.com/jonwraymond/entitycache/keys"
	"github.com/jonwraymond/entitycache/observe"
	"github.com/jonwraymond/entitycache/resilience"
)

// Mirror kinds for SessionConfig.Mirror.
const (
	MirrorMemory = "memory"
	MirrorFile   = "file"
	MirrorRedis  = "redis"
)

// Config is the complete engine configuration.
type Config struct {
	Cache   CacheConfig    `yaml:"cache"`
	Session SessionConfig  `yaml:"session"`
	Retry   RetryConfig    `yaml:"retry"`
	Circuit CircuitConfig  `yaml:"circuit"`
	Health  HealthConfig   `yaml:"health"`
	Observe observe.Config `yaml:"observe"`
}

// CacheConfig configures staleness and garbage collection.
type CacheConfig struct {
	DefaultStaleTime Duration            `yaml:"default_stale_time"`
	StaleTimes       map[string]Duration `yaml:"stale_times"`
	GCTime           time.Duration       `yaml:"gc_time"`

	// GCInterval is how often the engine runs Store.Collect. Zero disables
	// the background collector.
	GCInterval time.Duration `yaml:"gc_interval"`
}

// SessionConfig configures the session token lifecycle.
type SessionConfig struct {
	// ExpiryBuffer is the window before expiry in which a token is no longer
	// sent to the transport.
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`

	// Mirror is memory, file or redis.
	Mirror   string `yaml:"mirror"`
	File     string `yaml:"file"`
	RedisURL string `yaml:"redis_url"`
	RedisKey string `yaml:"redis_key"`

	// ClearOnClose wipes the token when the engine closes, like a browser
	// tab clearing its session on unload.
	ClearOnClose bool `yaml:"clear_on_close"`
}

// RetryConfig configures retries of network failures on reads.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`
}

// CircuitConfig configures the transport circuit breaker.
type CircuitConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// HealthConfig configures the health checks.
type HealthConfig struct {
	// ErrorRatio is the share of failed entries at which the store is
	// reported degraded.
	ErrorRatio float64       `yaml:"error_ratio"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns the default configuration.
func Default() Config {
	policy := keys.DefaultPolicy()
	stale := make(map[string]Duration, len(policy.StaleTimes))
	for t, d := range policy.StaleTimes {
		stale[t] = Duration(d)
	}
	return Config{
		Cache: CacheConfig{
			DefaultStaleTime: Duration(policy.DefaultStaleTime),
			StaleTimes:       stale,
			GCTime:           policy.GCTime,
			GCInterval:       time.Minute,
		},
		Session: SessionConfig{
			ExpiryBuffer: 60 * time.Second,
			Mirror:       MirrorMemory,
			RedisKey:     "entitycache:session",
			ClearOnClose: true,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
		Circuit: CircuitConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
		},
		Health: HealthConfig{
			ErrorRatio: 0.5,
			Timeout:    5 * time.Second,
		},
		Observe: observe.Config{
			ServiceName: "entitycache",
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads, expands and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands environment references in data and decodes it over
// Default. The result is validated.
func Parse(data []byte) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Cache.DefaultStaleTime < 0 && c.Cache.DefaultStaleTime != Duration(cache.NeverStale) {
		return fmt.Errorf("%w: cache.default_stale_time %v", ErrInvalidDuration, time.Duration(c.Cache.DefaultStaleTime))
	}
	for t, d := range c.Cache.StaleTimes {
		if d < 0 && d != Duration(cache.NeverStale) {
			return fmt.Errorf("%w: cache.stale_times.%s %v", ErrInvalidDuration, t, time.Duration(d))
		}
	}
	if c.Cache.GCTime < 0 || c.Cache.GCInterval < 0 {
		return fmt.Errorf("%w: cache gc settings must not be negative", ErrInvalidDuration)
	}
	if c.Session.ExpiryBuffer < 0 {
		return fmt.Errorf("%w: session.expiry_buffer %v", ErrInvalidDuration, c.Session.ExpiryBuffer)
	}

	switch c.Session.Mirror {
	case MirrorMemory, "":
	case MirrorFile:
		if c.Session.File == "" {
			return fmt.Errorf("%w: file mirror needs session.file", ErrInvalidMirror)
		}
	case MirrorRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("%w: redis mirror needs session.redis_url", ErrInvalidMirror)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMirror, c.Session.Mirror)
	}

	if c.Retry.MaxAttempts < 0 || c.Retry.Multiplier < 0 {
		return fmt.Errorf("%w: attempts and multiplier must not be negative", ErrInvalidRetry)
	}
	if c.Health.ErrorRatio < 0 || c.Health.ErrorRatio > 1 {
		return fmt.Errorf("%w: error_ratio %v not in [0, 1]", ErrInvalidHealth, c.Health.ErrorRatio)
	}
	return c.Observe.Validate()
}

// Policy returns the cache policy described by c.Cache.
func (c CacheConfig) Policy() cache.Policy {
	p := cache.Policy{
		DefaultStaleTime: time.Duration(c.DefaultStaleTime),
		StaleTimes:       make(map[string]time.Duration, len(c.StaleTimes)),
		GCTime:           c.GCTime,
	}
	for t, d := range c.StaleTimes {
		p.StaleTimes[t] = time.Duration(d)
	}
	return p
}

// Resilience returns the retry policy described by c.
func (c RetryConfig) Resilience() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
	}
}

// Resilience returns the breaker settings described by c.
func (c CircuitConfig) Resilience() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		MaxFailures:  c.MaxFailures,
		ResetTimeout: c.ResetTimeout,
	}
}
