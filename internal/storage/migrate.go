package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema for the given dialect. It opens
// its own connection because closing a migrate instance closes the database
// it was given.
func RunMigrations(d Dialect, dsn string) error {
	migrateDB, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch d {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
	default:
		return fmt.Errorf("unsupported dialect: %s", d)
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", d, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(d))
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
