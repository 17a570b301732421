package sqlite

import (
	"database/sql"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlcipher"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable keeps track of applied schema versions.
var MigrationsTable = "nodemanager_" + sqlcipher.DefaultMigrationsTable

// Migrate database using the *.sql files found in dir of resources.
func Migrate(db *sql.DB, resources fs.FS, dir string) error {
	source, err := iofs.New(resources, dir)
	if err != nil {
		return err
	}

	driver, err := sqlcipher.WithInstance(db, &sqlcipher.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs",
		source,
		"sqlcipher",
		driver)
	if err != nil {
		return err
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
