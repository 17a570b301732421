package sqlite

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	_ "github.com/mutecomm/go-sqlcipher/v4" // We require go sqlcipher that overrides default implementation
)

// ReducedKDFIterationsNumber keeps key derivation cheap in tests.
const ReducedKDFIterationsNumber = 3200

// InMemoryPath opens a private in-memory database.
const InMemoryPath = ":memory:"

// StatementCreator is satisfied by both *sql.DB and *sql.Tx.
type StatementCreator interface {
	Prepare(query string) (*sql.Stmt, error)
}

// StatementExecutor is satisfied by both *sql.DB and *sql.Tx.
type StatementExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// OpenDBWithKey opens encrypted database passing key as PRAGMA key.
// key is the hex encoding of the raw 32 byte key.
func OpenDBWithKey(path, key string, kdfIterationsNumber int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Disable concurrent access as not supported by the driver
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}
	keyString := fmt.Sprintf("PRAGMA key = \"x'%s'\"", key)
	if _, err = db.Exec(keyString); err != nil {
		return nil, errors.New("failed to set key pragma")
	}

	if kdfIterationsNumber > 0 {
		if _, err = db.Exec(fmt.Sprintf("PRAGMA kdf_iter = '%d'", kdfIterationsNumber)); err != nil {
			return nil, err
		}
	}

	if path == InMemoryPath {
		return db, nil
	}

	// readers do not block writers and faster i/o operations
	// must be set after db is encrypted
	var mode string
	err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode)
	if err != nil {
		return nil, err
	}
	if mode != "wal" {
		return nil, fmt.Errorf("unable to set journal_mode to WAL. actual mode %s", mode)
	}

	return db, nil
}

// OpenDB opens encrypted database using password.
func OpenDB(path, password string, kdfIterationsNumber int) (*sql.DB, error) {
	passhash := sha3.Sum256([]byte(password))
	return OpenDBWithKey(path, hex.EncodeToString(passhash[:]), kdfIterationsNumber)
}
