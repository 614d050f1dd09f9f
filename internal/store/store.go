package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding groups, conversation threads,
// recipient preferences, the outgoing message log and media parts.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS account (
	key TEXT PRIMARY KEY,
	value BLOB
);
CREATE TABLE IF NOT EXISTS groups (
	group_id TEXT PRIMARY KEY,
	title TEXT,
	avatar BLOB,
	members TEXT NOT NULL,
	admins TEXT NOT NULL DEFAULT '[]',
	owner TEXT NOT NULL,
	mms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS thread (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recipient TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS recipient (
	address TEXT PRIMARY KEY,
	profile_sharing INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS outgoing (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id INTEGER NOT NULL,
	group_id TEXT NOT NULL,
	body BLOB NOT NULL,
	recipients TEXT,
	sent_at INTEGER NOT NULL,
	expires_in INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS part (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id INTEGER NOT NULL,
	message_id INTEGER,
	content_type TEXT NOT NULL,
	size INTEGER NOT NULL,
	data BLOB,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS part_thread ON part (thread_id, content_type);
`

// DefaultDataDir returns the default data directory for signal-groups databases.
// Uses $XDG_DATA_HOME/signal-groups, falling back to ~/.local/share/signal-groups.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "signal-groups")
}

// Open opens or creates a SQLite store at the given path.
// If dbPath is empty, it defaults to $XDG_DATA_HOME/signal-groups/default.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(DefaultDataDir(), "default.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// runMigrations applies any necessary schema changes.
func runMigrations(db *sql.DB) error {
	// Migration: distribution type on threads, 2 = conversation.
	_, err := db.Exec("ALTER TABLE thread ADD COLUMN distribution_type INTEGER NOT NULL DEFAULT 2")
	if err != nil && !isColumnExistsError(err) {
		return fmt.Errorf("add distribution_type column: %w", err)
	}
	return nil
}

// isColumnExistsError checks if the error is due to column already existing.
func isColumnExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
