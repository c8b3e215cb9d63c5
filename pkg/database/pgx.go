package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPGXPool creates the pgx pool the gamification repository runs on.
// The first ping is retried with backoff so the server survives a slow database start.
func NewPGXPool(config Config) (*pgxpool.Pool, error) {
	config.applyDefaults()

	poolConfig, err := pgxpool.ParseConfig(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}

	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	err = retry("pgx", config.ConnectRetries, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping pgx pool: %w", err)
	}

	return pool, nil
}
