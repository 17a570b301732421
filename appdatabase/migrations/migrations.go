package migrations

import (
	"database/sql"
	"embed"

	"github.com/status-im/nodemanager/sqlite"
)

//go:embed sql/*.sql
var resources embed.FS

// Migrate applies the app database schema.
func Migrate(db *sql.DB) error {
	return sqlite.Migrate(db, resources, "sql")
}
