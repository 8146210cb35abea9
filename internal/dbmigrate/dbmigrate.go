// Package dbmigrate applies embedded golang-migrate migrations to a SQLite
// database file.
package dbmigrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// Source names a set of migrations.
type Source struct {
	// FS holds the *.up.sql and *.down.sql files under Dir.
	FS  fs.FS
	Dir string
	// Table records the applied version. Schemas sharing a database file
	// need distinct tables; empty means golang-migrate's default.
	Table string
}

// Up applies every pending migration in src to dbPath and returns the
// resulting schema version.
func Up(dbPath string, src Source) (uint, error) {
	// Separate connection: migrate closes its driver, which must not close the caller's pool
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: src.Table})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(src.FS, src.Dir)
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	slog.Debug("Migrations applied", "db_path", dbPath, "table", src.Table, "version", version)
	return version, nil
}
