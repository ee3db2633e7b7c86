package pgstore

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS documents_owner_idx
	ON documents (collection, (data->>'ownerId'));
CREATE INDEX IF NOT EXISTS documents_to_idx
	ON documents (collection, (data->>'toId'));
CREATE INDEX IF NOT EXISTS documents_from_idx
	ON documents (collection, (data->>'fromId'));
`

// EnsureSchema creates the documents table and its lookup indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
