package appdatabase

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/status-im/nodemanager/appdatabase/migrations"
	"github.com/status-im/nodemanager/common/dbsetup"
	"github.com/status-im/nodemanager/logutils"
	"github.com/status-im/nodemanager/sqlite"
)

// DbInitializer satisfies dbsetup.DatabaseInitializer.
type DbInitializer struct{}

func (a DbInitializer) Initialize(path, password string, kdfIterationsNumber int) (*sql.DB, error) {
	return InitializeDB(path, password, kdfIterationsNumber)
}

// InitializeDB creates db file at a given path and applies migrations.
func InitializeDB(path, password string, kdfIterationsNumber int) (*sql.DB, error) {
	db, err := sqlite.OpenDB(path, password, kdfIterationsNumber)
	if err != nil {
		return nil, err
	}

	if err = migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// GetDBFilename takes an instance of sql.DB and returns the filename of the "main" database
func GetDBFilename(db *sql.DB) (string, error) {
	if db == nil {
		logutils.ZapLogger().Warn("GetDBFilename was passed a nil pointer sql.DB")
		return "", nil
	}

	var i, category, filename string
	rows, err := db.Query("PRAGMA database_list;")
	if err != nil {
		return "", err
	}

	defer rows.Close()
	for rows.Next() {
		err = rows.Scan(&i, &category, &filename)
		if err != nil {
			return "", err
		}

		// The "main" database is the one we care about
		if category == "main" {
			return filename, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return "", errors.New("no main database found")
}

// SetupTestMemorySQLDB returns an in-memory database with the schema applied.
func SetupTestMemorySQLDB(initializer dbsetup.DatabaseInitializer) (*sql.DB, func() error, error) {
	db, err := initializer.Initialize(sqlite.InMemoryPath, "test", sqlite.ReducedKDFIterationsNumber)
	if err != nil {
		return nil, nil, err
	}
	return db, func() error {
		err := db.Close()
		if err != nil {
			logutils.ZapLogger().Warn("failed to close test database", zap.Error(err))
		}
		return err
	}, nil
}
