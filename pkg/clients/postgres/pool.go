// Package postgres establishes the connection pool for the catalog
// database. It owns configuration, TLS setup, and pool sizing; query
// execution, tracing, and error classification live with the catalog store
// that consumes the pool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// NewPool validates the configuration, establishes a pgx connection pool,
// configures TLS when a custom CA certificate is provided, and verifies
// connectivity with a ping.
//
// The caller must Close the returned pool when it is no longer needed.
//
// Error codes returned:
//   - [gwerr.CodeValidation]: invalid configuration
//   - [gwerr.CodeInternalConfiguration]: TLS setup failure
//   - [gwerr.CodeUnavailableDependency]: cannot connect to the database
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeValidation,
			"postgres: invalid configuration")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeValidation,
			"postgres: failed to parse connection string")
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeInternalConfiguration,
			"postgres: failed to configure TLS")
	}
	if tlsCfg != nil {
		poolCfg.ConnConfig.TLSConfig = tlsCfg
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"postgres: failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"postgres: failed to connect to database")
	}

	return pool, nil
}
