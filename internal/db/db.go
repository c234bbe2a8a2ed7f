package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the base directory.
const FileName = "fpconsent.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/fpconsent.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.fpconsent.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, FileName)
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

	// Settings may hold SMTP recipients; keep the file private.
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migration upgrades the schema to version by running stmt.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations are applied in order; each runs once, keyed on user_version.
var migrations = []migration{
	{
		version: 1,
		name:    "settings key/value table",
		stmt: `
		CREATE TABLE IF NOT EXISTS settings (
		  key        TEXT PRIMARY KEY,
		  value_json TEXT NOT NULL,
		  updated_at INTEGER NOT NULL
		);`,
	},
	{
		version: 2,
		name:    "audit run history",
		stmt: `
		CREATE TABLE IF NOT EXISTS audit_runs (
		  id             TEXT PRIMARY KEY,
		  ran_at         INTEGER NOT NULL,
		  baseline       INTEGER NOT NULL,
		  detected_count INTEGER NOT NULL,
		  added_json     TEXT,
		  removed_json   TEXT,
		  alert_active   INTEGER NOT NULL,
		  email_sent     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_runs_ran_at
		ON audit_runs(ran_at DESC);`,
	},
}

// migrate brings the schema up to CurrentSchemaVersion.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if err := SetUserVersion(db, m.version); err != nil {
			return err
		}
		version = m.version
	}
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

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
