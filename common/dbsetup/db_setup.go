package dbsetup

import "database/sql"

// DatabaseInitializer opens a database at path and brings its schema up to date.
type DatabaseInitializer interface {
	Initialize(path, password string, kdfIterationsNumber int) (*sql.DB, error)
}
