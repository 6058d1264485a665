package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// busyTimeoutMS lets a CLI command wait for a running server's write to
// finish instead of failing with SQLITE_BUSY.
const busyTimeoutMS = 5000

// DB holds the working table and its pending edits between runs of the
// forecast CLI and server.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the state database at path, creating it and its directory on
// first use and upgrading an older schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory for %s: %w", path, err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database %s: %w", path, err)
	}
	// One writer at a time; SaveState replaces everything in one transaction.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS),
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("state database %s: %s: %w", path, pragma, err)
		}
	}

	if err := upgradeSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state database %s: %w", path, err)
	}

	return &DB{conn: conn, path: path}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the file the state lives in.
func (db *DB) Path() string {
	return db.path
}

// SchemaVersion reports the schema version of the open database.
func (db *DB) SchemaVersion() (int, error) {
	return schemaVersion(db.conn)
}
