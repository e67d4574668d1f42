// Package postgres provides the PostgreSQL feature store, job repository
// and their embedded schema migrations.
package postgres

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/padel-featurizer/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeInternal, "failed to open embedded migrations")
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m, nil
}

// withMigrator runs fn on a migrator.  When the DSN is known the migrator
// gets its own pool, since closing a migrator closes its database.
func (c *Connection) withMigrator(fn func(m *migrate.Migrate) error) error {
	db, owned := c.db, false
	if c.cfg.DSN != "" {
		own, err := sqlOpen(DriverName, c.cfg.DSN)
		if err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to open migration connection")
		}
		db, owned = own, true
	}
	m, err := newMigrator(db)
	if err != nil {
		if owned {
			db.Close()
		}
		return err
	}
	if owned {
		defer m.Close()
	}
	return fn(m)
}

// RunMigrations applies all pending migrations.  No pending migrations is
// not an error.
func (c *Connection) RunMigrations() error {
	return c.withMigrator(func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to run migrations")
		}
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			c.logger.Warn("Failed to get migration version", logging.Err(err))
		}
		c.logger.Info("Database migrations completed",
			logging.Int64("version", int64(version)),
			logging.Bool("dirty", dirty),
		)
		return nil
	})
}

// RollbackMigration rolls back steps migrations.
func (c *Connection) RollbackMigration(steps int) error {
	if steps <= 0 {
		return pkgerrors.Newf(pkgerrors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	return c.withMigrator(func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.ErrCodeDatabaseError, "failed to roll back migrations")
		}
		return nil
	})
}

// MigrationStatus reports the applied version; 0 when nothing is applied.
func (c *Connection) MigrationStatus() (version uint, dirty bool, err error) {
	err = c.withMigrator(func(m *migrate.Migrate) error {
		var verr error
		version, dirty, verr = m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if verr != nil {
			return pkgerrors.Wrap(verr, pkgerrors.ErrCodeDatabaseError, "failed to get migration version")
		}
		return nil
	})
	return version, dirty, err
}

// MigrationFiles lists the embedded migration file names.
func MigrationFiles() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

//Personal.AI order the ending
