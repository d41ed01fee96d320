// Package sqlite provides a durable PersistenceStore backed by a SQLite
// database file via the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hupe1980/contextmesh/core"
)

// Store persists encoded instance memory in a single SQLite table keyed by
// (type_id, derived_key).
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and prepares the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer by design. Keep a single shared connection so
	// concurrent callers are serialized by database/sql instead of fighting
	// for write locks across multiple underlying connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and speed
		"PRAGMA busy_timeout = 5000",  // Wait up to 5s for locks
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS context_memory (
			type_id     TEXT NOT NULL,
			derived_key TEXT NOT NULL,
			memory      BLOB NOT NULL,
			updated_at  TIMESTAMP NOT NULL,
			PRIMARY KEY (type_id, derived_key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted memory bytes for the key or ErrMemoryNotFound.
func (s *Store) Load(ctx context.Context, key core.InstanceKey) ([]byte, error) {
	var memory []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT memory FROM context_memory
		WHERE type_id = ? AND derived_key = ?
	`, key.TypeID, key.Derived).Scan(&memory)

	if err == sql.ErrNoRows {
		return nil, core.ErrMemoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading memory for %s: %w", key, err)
	}

	return memory, nil
}

// Save upserts the memory bytes for the key.
func (s *Store) Save(ctx context.Context, key core.InstanceKey, memory []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_memory (type_id, derived_key, memory, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (type_id, derived_key) DO UPDATE SET
			memory = excluded.memory,
			updated_at = excluded.updated_at
	`, key.TypeID, key.Derived, memory, time.Now())

	if err != nil {
		return fmt.Errorf("saving memory for %s: %w", key, err)
	}

	return nil
}

// Delete removes the persisted memory for a key.
func (s *Store) Delete(ctx context.Context, key core.InstanceKey) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM context_memory
		WHERE type_id = ? AND derived_key = ?
	`, key.TypeID, key.Derived)
	if err != nil {
		return fmt.Errorf("deleting memory for %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting memory for %s: %w", key, err)
	}
	if affected == 0 {
		return core.ErrMemoryNotFound
	}

	return nil
}
