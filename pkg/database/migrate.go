package database

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"tila/pkg/logger"
)

// MigrationStatus reports the schema version after a migration run
type MigrationStatus struct {
	From  uint
	To    uint
	Dirty bool
}

func newMigrator(db *DB, migrations fs.FS) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// MigrateUp applies every pending migration found in migrations.
// The migrator is not closed because that would close db.
func MigrateUp(db *DB, migrations fs.FS) (*MigrationStatus, error) {
	m, err := newMigrator(db, migrations)
	if err != nil {
		return nil, err
	}

	from, dirty, err := version(m)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return &MigrationStatus{From: from, To: from, Dirty: true},
			fmt.Errorf("database is in dirty state at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	to, dirty, err := version(m)
	if err != nil {
		return nil, fmt.Errorf("failed to get new migration version: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"from_version": from,
		"to_version":   to,
	}).Info("Migrations completed successfully")

	return &MigrationStatus{From: from, To: to, Dirty: dirty}, nil
}

// MigrateDown rolls back the given number of migrations
func MigrateDown(db *DB, migrations fs.FS, steps int) (*MigrationStatus, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	m, err := newMigrator(db, migrations)
	if err != nil {
		return nil, err
	}

	from, _, err := version(m)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("failed to roll back migrations: %w", err)
	}
	to, dirty, err := version(m)
	if err != nil {
		return nil, fmt.Errorf("failed to get new migration version: %w", err)
	}
	return &MigrationStatus{From: from, To: to, Dirty: dirty}, nil
}
