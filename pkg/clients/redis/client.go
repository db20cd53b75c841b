// Package redis establishes the connection for the profile cache. It owns
// configuration, TLS setup, and pool sizing; cache key layout, tracing,
// and degradation behavior live with the catalog cache that consumes the
// client.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// NewClient validates the configuration, builds a go-redis client, and
// verifies connectivity with a ping.
//
// The caller must Close the returned client when it is no longer needed.
//
// Error codes returned:
//   - [gwerr.CodeValidation]: invalid configuration
//   - [gwerr.CodeUnavailableDependency]: cannot connect to the server
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeValidation,
			"redis: invalid configuration")
	}

	var opts *goredis.Options
	if cfg.URI != "" {
		parsed, err := goredis.ParseURL(cfg.URI)
		if err != nil {
			return nil, gwerr.Wrap(err, gwerr.CodeValidation,
				"redis: failed to parse connection URI")
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password.Value(),
			DB:       cfg.DB,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"redis: failed to connect to server")
	}

	return client, nil
}
