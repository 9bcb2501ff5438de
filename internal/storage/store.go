package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is a whole-document key-value store. Each logical state document
// (mapping, safe hours, approvals, ...) is one entry, read fresh and
// written whole; there is no partial update. Implementations must treat an
// absent key as (nil, nil) so callers can fall back to typed defaults.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

// DocumentStore is the SQLite-backed Store: one row per document.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a document store over the given database.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the stored body for key, or (nil, nil) when absent.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE key = ?", key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %q: %w", key, err)
	}
	return body, nil
}

// Put writes the whole document body for key, replacing any prior value.
func (s *DocumentStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, key, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing document %q: %w", key, err)
	}
	return nil
}

// Delete removes the document for key. Deleting an absent key is not an
// error.
func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting document %q: %w", key, err)
	}
	return nil
}
