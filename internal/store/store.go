// Package store provides sqlite-backed implementations of the repository
// interfaces. Entities are persisted as JSON blobs with a few extracted
// columns for filtering and ordering, so the schema survives struct growth
// without migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return openPath(filepath.Join(dataDir, "choreboard.db"))
}

func openPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS chores (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kids (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			id       TEXT PRIMARY KEY,
			chore_id TEXT NOT NULL,
			kid_id   TEXT NOT NULL DEFAULT '',
			state    TEXT NOT NULL,
			due_at   TEXT,
			data     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_chore ON instances(chore_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_state ON instances(state)`,
		`CREATE TABLE IF NOT EXISTS ledgers (
			kid_id TEXT PRIMARY KEY,
			data   TEXT NOT NULL
		)`,
	}
	for _, q := range schemas {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SnapshotTo writes a consistent point-in-time copy of the database to path
// via VACUUM INTO, which is safe against a live WAL. path must not exist yet.
func (s *Store) SnapshotTo(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("store: snapshot to %s: %w", path, err)
	}
	return nil
}

func (s *Store) Chores() *ChoreRepo       { return &ChoreRepo{db: s.db} }
func (s *Store) Kids() *KidRepo           { return &KidRepo{db: s.db} }
func (s *Store) Instances() *InstanceRepo { return &InstanceRepo{db: s.db} }
func (s *Store) Ledgers() *LedgerRepo     { return &LedgerRepo{db: s.db} }
