package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prn-tf/aipm-identity/internal/repository/recordstore"
)

// RecordBackend stores collection documents in the record_collections table.
type RecordBackend struct {
	db *DB
}

// NewRecordBackend creates a record backend over db.
func NewRecordBackend(db *DB) *RecordBackend {
	return &RecordBackend{db: db}
}

// Name implements recordstore.Backend.
func (b *RecordBackend) Name() string {
	return "sqlite"
}

// Read implements recordstore.Backend.
func (b *RecordBackend) Read(ctx context.Context, collection string) ([]byte, error) {
	var document string
	err := b.db.db.QueryRowContext(ctx,
		`SELECT document FROM record_collections WHERE name = ?`, collection,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recordstore.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	return []byte(document), nil
}

// Write implements recordstore.Backend.
func (b *RecordBackend) Write(ctx context.Context, collection string, document []byte) error {
	_, err := b.db.db.ExecContext(ctx, `
		INSERT INTO record_collections (name, document, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, collection, string(document))
	if err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return nil
}

var _ recordstore.Backend = (*RecordBackend)(nil)
