package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is the default database location
const DefaultPath = "/var/lib/lustrezfs/history.db"

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	// Create schema version table
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Get current version
	var version int
	err = d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	// Run migrations
	migrations := []string{
		migrationV1,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationV1 creates the initial schema
const migrationV1 = `
-- Every dataset formatted or written as a Lustre target
CREATE TABLE IF NOT EXISTS targets (
    id INTEGER PRIMARY KEY,
    dataset TEXT UNIQUE NOT NULL,
    pool TEXT NOT NULL,
    fsname TEXT,
    svname TEXT,
    target_index INTEGER,
    flags INTEGER DEFAULT 0,
    server_type TEXT,
    mountopts TEXT,
    params TEXT,

    first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_targets_pool ON targets(pool);
CREATE INDEX IF NOT EXISTS idx_targets_fsname ON targets(fsname);

-- One row per operation attempted against a dataset
CREATE TABLE IF NOT EXISTS target_events (
    id INTEGER PRIMARY KEY,
    op_id TEXT NOT NULL,
    dataset TEXT NOT NULL,
    event_type TEXT NOT NULL,
    status TEXT NOT NULL,
    errno INTEGER DEFAULT 0,
    details TEXT,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_dataset ON target_events(dataset);
CREATE INDEX IF NOT EXISTS idx_events_op ON target_events(op_id);
CREATE INDEX IF NOT EXISTS idx_events_time ON target_events(timestamp);
`

// TargetRecord represents a target in the database
type TargetRecord struct {
	ID         int64
	Dataset    string
	Pool       string
	FSName     string
	SVName     string
	Index      uint32
	Flags      uint32
	ServerType string
	MountOpts  string
	Params     string
	FirstSeen  time.Time
	LastSeen   time.Time
}

// TargetEvent represents one recorded operation
type TargetEvent struct {
	ID        int64
	OpID      string
	Dataset   string
	EventType string
	Status    string
	Errno     int
	Details   string
	Timestamp time.Time
}

// Event types
const (
	EventMkfs   = "mkfs"
	EventWrite  = "write"
	EventLabel  = "label"
	EventRead   = "read"
	EventDetect = "detect"
)

// Event statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
	StatusDryRun = "dry-run"
)
