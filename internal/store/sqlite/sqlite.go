// Package sqlite implements the versioned store contract over SQLite
// (modernc.org/sqlite). Snapshots and delta history live in two tables keyed
// by context id and (context id, version); values are stored as JSON.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/stefanzvkvc/chord/internal/timeutil"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

const dbFileName = "chord.db"

// SQLite is a SQLite-backed versioned store.
type SQLite struct {
	db    *sql.DB
	clock timeutil.Clock
	unit  timeutil.Unit
}

// Init opens (creating if needed) the database at baseDir/chord.db and runs
// migrations. The baseDir parameter allows tests to use t.TempDir().
func Init(baseDir string, clock timeutil.Clock, unit timeutil.Unit) (*SQLite, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to all pooled connections.
	dbPath := filepath.Join(baseDir, dbFileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &SQLite{db: db, clock: clock, unit: unit}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
		  context_id  TEXT PRIMARY KEY,
		  state_json  TEXT NOT NULL,
		  version     INTEGER NOT NULL,
		  inserted_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_inserted_at
		ON snapshots(inserted_at);

		CREATE TABLE IF NOT EXISTS deltas (
		  context_id  TEXT NOT NULL,
		  version     INTEGER NOT NULL,
		  delta_json  TEXT NOT NULL,
		  inserted_at INTEGER NOT NULL,
		  PRIMARY KEY (context_id, version)
		);

		CREATE INDEX IF NOT EXISTS idx_deltas_inserted_at
		ON deltas(context_id, inserted_at);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
