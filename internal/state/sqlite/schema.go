package sqlite

import (
	"context"
	"fmt"
	"strings"
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

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}
	return statements
}
