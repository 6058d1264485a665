package database

import (
	"database/sql"
	"fmt"
	"log"
)

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// upgradeSchema applies the migrations newer than the stored user_version.
// A file written by a newer build is refused rather than read with a
// schema this build does not know.
func upgradeSchema(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	if current > latest {
		return fmt.Errorf("schema v%d is newer than this build supports (v%d); remove the file to start over", current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Printf("state: upgrading schema to v%d (%s)", m.Version, m.Description)
		if err := applyMigration(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("schema v%d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("schema v%d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema v%d: commit: %w", m.Version, err)
	}
	// modernc/sqlite rejects user_version inside a transaction; the DDL is
	// idempotent, so a crash here only replays the step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("schema v%d: recording version: %w", m.Version, err)
	}
	return nil
}
