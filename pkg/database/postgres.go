package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"tila/pkg/logger"
)

// DB wraps the sql.DB connection for PostgreSQL
type DB struct {
	*sql.DB
}

// Config holds PostgreSQL database configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Timeout         time.Duration
	ConnectRetries  int // extra attempts after the first failed ping
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// DSN renders the config as a lib/pq keyword string
func (c Config) DSN() string {
	c.applyDefaults()
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
		int(c.Timeout.Seconds()),
	)
}

// URL renders the config as a postgres:// URL (pgx, golang-migrate)
func (c Config) URL() string {
	c.applyDefaults()
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		int(c.Timeout.Seconds()),
	)
}

// retry runs op with exponential backoff, logging every failed attempt
func retry(what string, retries int, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.RetryNotify(
		op,
		backoff.WithMaxRetries(b, uint64(max(retries, 0))),
		func(err error, d time.Duration) {
			logger.WithFields(map[string]interface{}{
				"target":  what,
				"backoff": d.String(),
			}).WithError(err).Warn("database connect attempt failed")
		},
	)
}

// NewDB creates a new PostgreSQL database connection with proper pooling.
// Used for migrations and health checks; the repositories run on pgx.
func NewDB(config Config) (*DB, error) {
	config.applyDefaults()

	sqlDB, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	err = retry("postgres", config.ConnectRetries, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return sqlDB.PingContext(ctx)
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sqlDB}, nil
}

// HealthCheck performs a database health check with timeout
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result != 1 {
		return fmt.Errorf("health check returned unexpected value: %d", result)
	}

	return nil
}
