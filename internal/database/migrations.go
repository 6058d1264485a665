package database

import "database/sql"

// Migration is one step of the state schema, recorded in user_version.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations run in order; append new steps with the next Version.
var migrations = []Migration{
	{
		Version:     1,
		Description: "working table and pending edits",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS records (
    date TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    cells TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edits (
    date TEXT NOT NULL,
    column_key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (date, column_key)
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "position index",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_records_position ON records(position)`)
			return err
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
