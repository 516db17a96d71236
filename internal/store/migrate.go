package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations brings the schema up to the newest embedded migration. The
// SQL is kept portable between sqlite and postgres.
func (s *Store) RunMigrations() error {
	d, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	var (
		driver database.Driver
		name   string
	)
	switch s.driver {
	case "postgres":
		driver, err = pgxmigrate.WithInstance(s.db, &pgxmigrate.Config{})
		name = "pgx5"
	default:
		// This driver works with modernc.org/sqlite as well
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
		name = "sqlite"
	}
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", d, name, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
