// Package app wires configuration into a ready engine, shared by the server and the CLI
package app

import (
	"context"
	"fmt"

	"tila/internal/cache"
	"tila/internal/catalog"
	"tila/internal/core"
	"tila/internal/repository"
	"tila/migrations"
	"tila/pkg/config"
	"tila/pkg/database"
	"tila/pkg/logger"
	"tila/pkg/metrics"
)

// App holds the engine and everything it was built from
type App struct {
	Config    *config.Config
	Repo      repository.GamificationRepository
	Catalog   *catalog.Catalog
	Metrics   *metrics.Metrics
	Service   core.GamificationService
	Rescanner *core.Rescanner
	Clock     core.Clock

	closers []func()
}

// Options lets callers plug in collaborators built after the store (the websocket hub)
type Options struct {
	Notifier core.Notifier
	// Metrics is shared with collaborators built outside; nil creates a registry
	Metrics *metrics.Metrics
	// SkipCache leaves progress uncached; one-shot CLI commands use it
	SkipCache bool
}

// Open connects the configured store, applies the schema and builds the engine
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	loc, err := cfg.Gamification.Location()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Metrics: opts.Metrics,
		Clock:   core.Clock{Location: loc},
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}

	a.Catalog, err = catalog.Load(cfg.Gamification.CatalogPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("Loaded badge catalog with %d badges", a.Catalog.Len())

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	serviceOpts := []core.Option{
		core.WithClock(a.Clock),
		core.WithMetrics(a.Metrics),
		core.WithNotifier(opts.Notifier),
	}
	if !opts.SkipCache {
		progressCache, err := a.openCache(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		serviceOpts = append(serviceOpts, core.WithProgressCache(progressCache))
	}

	a.Service = core.NewGamificationService(a.Repo, a.Catalog, serviceOpts...)
	a.Rescanner = core.NewRescanner(a.Repo, a.Service, cfg.Gamification.RescanRate, a.Metrics)
	return a, nil
}

func (a *App) openStore() error {
	switch a.Config.Database.Driver {
	case "sqlite":
		repo, err := repository.NewSQLiteRepository(a.Config.Database.SQLitePath)
		if err != nil {
			return err
		}
		a.Repo = repo
		a.closers = append(a.closers, repo.Close)
		logger.Infof("Using SQLite store at %s", a.Config.Database.SQLitePath)
		return nil

	case "postgres":
		if _, err := Migrate(a.Config); err != nil {
			return err
		}
		pool, err := database.NewPGXPool(a.Config.Database.Postgres())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.Repo = repository.NewGamificationRepository(pool)
		a.closers = append(a.closers, a.Repo.Close)
		logger.Info("Connected to PostgreSQL database")
		return nil

	default:
		return fmt.Errorf("unsupported database driver %q", a.Config.Database.Driver)
	}
}

func (a *App) openCache(ctx context.Context) (core.ProgressCache, error) {
	if a.Config.Redis.URL == "" {
		logger.Info("Redis not configured, caching badge progress in memory")
		return cache.NewMemoryProgressCache(a.Config.Redis.CacheTTL), nil
	}
	c, err := cache.NewRedisProgressCache(ctx, a.Config.Redis.URL, a.Config.Redis.CacheTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { c.Close() })
	logger.Info("Caching badge progress in redis")
	return c, nil
}

// Migrate brings the PostgreSQL schema up to date. SQLite applies its schema on open.
func Migrate(cfg *config.Config) (*database.MigrationStatus, error) {
	if cfg.Database.Driver != "postgres" {
		return &database.MigrationStatus{}, nil
	}
	db, err := database.NewDB(cfg.Database.Postgres())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	status, err := database.MigrateUp(db, migrations.Postgres)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return nil, fmt.Errorf("database unhealthy after migration: %w", err)
	}
	logger.Infof("Database schema at version %d", status.To)
	return status, nil
}

// Rollback reverts steps PostgreSQL migrations
func Rollback(cfg *config.Config, steps int) (*database.MigrationStatus, error) {
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("rollback is only supported for postgres")
	}
	db, err := database.NewDB(cfg.Database.Postgres())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	return database.MigrateDown(db, migrations.Postgres, steps)
}

// Close releases the store and cache in reverse order of opening
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
