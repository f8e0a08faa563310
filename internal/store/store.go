package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS dashboard_records (
		category         TEXT    NOT NULL CHECK (category IN ('energy', 'water', 'waste')),
		position         INTEGER NOT NULL,
		period           TEXT    NOT NULL,
		current_amount   REAL    NOT NULL DEFAULT 0,
		previous_amount  REAL    NOT NULL DEFAULT 0,
		PRIMARY KEY (category, position)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		user_name   TEXT NOT NULL,
		user_email  TEXT NOT NULL,
		subject     TEXT NOT NULL,
		body        TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'unread',
		created_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_email   ON messages(user_email);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

	CREATE TABLE IF NOT EXISTS message_replies (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		sender      TEXT NOT NULL,
		text        TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_replies_message ON message_replies(message_id);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}
