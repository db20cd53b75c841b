package redis

import (
	"fmt"
	"net/url"
	"time"
)

// Default connection pool and timeout settings. Tuned for the reference
// Kubernetes deployment where the profile cache runs behind a cluster
// Service.
const (
	// DefaultHost is the cluster-internal DNS name of the cache Service.
	DefaultHost = "redis.gatewise.svc.cluster.local"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultDB is the Redis database index used for the profile cache.
	DefaultDB = 0

	// DefaultPoolSize caps the connection pool. The cache workload is
	// small single-key reads, so a modest pool suffices.
	DefaultPoolSize = 25

	// DefaultMinIdleConns keeps warm connections for burst traffic.
	DefaultMinIdleConns = 5

	// DefaultMaxRetries is the retry budget for transient command
	// failures.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds new connection establishment.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout bounds reads from the server.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds writes to the server.
	DefaultWriteTimeout = 5 * time.Second
)

// Secret prevents accidental logging of the Redis password. Its String and
// GoString methods return a redacted placeholder; use [Secret.Value] for
// the actual value.
type Secret string

// redacted is the placeholder string returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to prevent accidental logging of the secret.
func (s Secret) String() string {
	return redacted
}

// GoString returns "[REDACTED]" for fmt.Sprintf("%#v", secret) safety.
func (s Secret) GoString() string {
	return redacted
}

// Value returns the actual secret string.
func (s Secret) Value() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]" so
// the secret never lands in serialized configuration.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config holds the cache connection configuration. It supports both
// URI-based and structured configuration; when [Config.URI] is set it
// takes precedence over the individual fields.
type Config struct {
	// URI is a Redis connection string (e.g.,
	// "redis://:password@host:6379/0" or "rediss://..." for TLS). When
	// set, Host, Port, DB, and Password are ignored.
	// Environment variable: REDIS_URI
	URI string `json:"uri,omitempty" yaml:"uri" env:"REDIS_URI"`

	// Host is the Redis server hostname or IP address.
	// Environment variable: REDIS_HOST
	Host string `json:"host,omitempty" yaml:"host" env:"REDIS_HOST"`

	// Port is the Redis server port.
	// Environment variable: REDIS_PORT
	Port int `json:"port,omitempty" yaml:"port" env:"REDIS_PORT"`

	// DB is the Redis database index.
	// Environment variable: REDIS_DB
	DB int `json:"db" yaml:"db" env:"REDIS_DB"`

	// Password is the Redis password.
	// Environment variable: REDIS_PASSWORD
	Password Secret `json:"-" yaml:"-" env:"REDIS_PASSWORD"`

	// PoolSize is the maximum number of connections in the pool.
	// Environment variable: REDIS_POOL_SIZE
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size" env:"REDIS_POOL_SIZE"`

	// MinIdleConns is the minimum number of idle connections kept warm.
	// Environment variable: REDIS_MIN_IDLE_CONNS
	MinIdleConns int `json:"min_idle_conns,omitempty" yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`

	// MaxRetries is the retry budget for a command. Set to -1 to
	// disable retries.
	// Environment variable: REDIS_MAX_RETRIES
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries" env:"REDIS_MAX_RETRIES"`

	// DialTimeout bounds new connection establishment.
	// Environment variable: REDIS_DIAL_TIMEOUT
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`

	// ReadTimeout bounds reads from the server.
	// Environment variable: REDIS_READ_TIMEOUT
	ReadTimeout time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`

	// WriteTimeout bounds writes to the server.
	// Environment variable: REDIS_WRITE_TIMEOUT
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled enables TLS for the connection. A "rediss://" URI
	// enables TLS automatically.
	// Environment variable: REDIS_TLS_ENABLED
	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config with defaults for the reference Kubernetes
// deployment. Callers override fields as needed before [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate checks the configuration and applies defaults for zero-valued
// fields. When [Config.URI] is set, structured fields are not validated
// because the URI takes precedence.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("redis: config dial_timeout must not be negative, got %v", c.DialTimeout)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("redis: config read_timeout must not be negative, got %v", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config write_timeout must not be negative, got %v", c.WriteTimeout)
	}

	return nil
}

// applyDefaults sets default values for zero-valued pool and timeout
// fields.
func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}
