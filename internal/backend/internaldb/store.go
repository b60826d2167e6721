// Package internaldb is the structured query layer over the internal document
// store. Rows live as JSON documents in SQLite; filters compile onto JSON1
// expressions, so the engine's comparison semantics hold without pulling
// documents into memory.
package internaldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store owns the SQLite handle for the internal row store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open internal store: %w", err)
	}
	// A single writer keeps the autoincrement sequence, and with it the
	// insertion-order default sort, strictly monotonic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rows (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			table_id TEXT NOT NULL,
			row_id   TEXT NOT NULL,
			doc      TEXT NOT NULL,
			UNIQUE (table_id, row_id)
		);
		CREATE INDEX IF NOT EXISTS idx_rows_table ON rows (table_id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init internal store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRow inserts or replaces one row document. Returns the row id, generating
// one when the document has no _id.
func (s *Store) PutRow(ctx context.Context, tableID string, doc map[string]any) (string, error) {
	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	stored := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		stored[k] = v
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode row: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rows (table_id, row_id, doc) VALUES (?, ?, ?)
		ON CONFLICT (table_id, row_id) DO UPDATE SET doc = excluded.doc
	`, tableID, id, string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to write row: %w", err)
	}
	return id, nil
}

// DeleteRow removes one row.
func (s *Store) DeleteRow(ctx context.Context, tableID, rowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rows WHERE table_id = ? AND row_id = ?`, tableID, rowID)
	return err
}
