package postgres

import (
	"context"
	"fmt"
)

const (
	kindExtracted = "extracted"
	kindAvatar    = "avatar"
	kindPainting  = "painting"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS archive_hashes (
    identity TEXT PRIMARY KEY,
    hash     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_units (
    kind     TEXT NOT NULL,
    name     TEXT NOT NULL,
    position INTEGER NOT NULL,
    CONSTRAINT uq_unit UNIQUE (kind, name)
);

CREATE INDEX IF NOT EXISTS idx_units_kind_position ON processed_units (kind, position);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
