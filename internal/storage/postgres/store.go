// Package postgres implements the ItemStore over a single items table.
// Conditional writes map onto ON CONFLICT DO NOTHING and version-guarded
// UPDATEs; the secondary index is a plain indexed column.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffreymoya/photoeditor-sub011/internal/storage"
)

var _ storage.ItemStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	index_key  TEXT NOT NULL DEFAULT '',
	version    BIGINT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS items_index_key_idx ON items (index_key) WHERE index_key <> '';`

// Store is a PostgreSQL-backed item store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL-backed item store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the items table and its secondary index if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, item *storage.Item) error {
	query := `
		INSERT INTO items (key, index_key, version, payload, created_at, updated_at)
		VALUES ($1, $2, 1, $3, now(), now())
		ON CONFLICT (key) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, item.Key, item.IndexKey, item.Payload)
	if err != nil {
		return fmt.Errorf("postgres: put item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Item, error) {
	query := `
		SELECT key, index_key, version, payload, created_at, updated_at
		FROM items
		WHERE key = $1`

	item := &storage.Item{}
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&item.Key, &item.IndexKey, &item.Version, &item.Payload,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get item: %w", err)
	}
	return item, nil
}

func (s *Store) UpdateConditional(ctx context.Context, key string, expectedVersion int64, payload []byte) (*storage.Item, error) {
	query := `
		UPDATE items
		SET payload = $2, version = version + 1, updated_at = now()
		WHERE key = $1 AND version = $3
		RETURNING key, index_key, version, payload, created_at, updated_at`

	item := &storage.Item{}
	err := s.pool.QueryRow(ctx, query, key, payload, expectedVersion).Scan(
		&item.Key, &item.IndexKey, &item.Version, &item.Payload,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Zero rows means either the key is gone or the version moved on.
		var exists bool
		if probeErr := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE key = $1)`, key).Scan(&exists); probeErr != nil {
			return nil, fmt.Errorf("postgres: update item: %w", probeErr)
		}
		if exists {
			return nil, storage.ErrPreconditionFailed
		}
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update item: %w", err)
	}
	return item, nil
}

func (s *Store) QueryByIndex(ctx context.Context, indexKey string) ([]*storage.Item, error) {
	query := `
		SELECT key, index_key, version, payload, created_at, updated_at
		FROM items
		WHERE index_key = $1`

	rows, err := s.pool.Query(ctx, query, indexKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: query by index: %w", err)
	}
	defer rows.Close()

	var out []*storage.Item
	for rows.Next() {
		item := &storage.Item{}
		if err := rows.Scan(
			&item.Key, &item.IndexKey, &item.Version, &item.Payload,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query by index: %w", err)
	}
	return out, nil
}
