package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"gfres/internal/apperr"
	"gfres/internal/state"
)

func (c *Client) Load(ctx context.Context) (*state.Snapshot, error) {
	snapshot := state.NewSnapshot()

	rows, err := c.db.QueryContext(ctx, `SELECT identity, hash FROM archive_hashes`)
	if err != nil {
		return nil, apperr.CacheIO("load", "archive_hashes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var identity, hash string
		if err := rows.Scan(&identity, &hash); err != nil {
			return nil, apperr.CacheIO("load", "archive_hashes", err)
		}
		snapshot.Hashes[identity] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.CacheIO("load", "archive_hashes", err)
	}

	units := map[string]*[]string{
		kindExtracted: &snapshot.Extracted,
		kindAvatar:    &snapshot.Avatars,
		kindPainting:  &snapshot.Paintings,
	}
	for kind, dest := range units {
		names, err := c.listUnits(ctx, kind)
		if err != nil {
			return nil, apperr.CacheIO("load", "processed_units", err)
		}
		*dest = names
	}
	return snapshot, nil
}

func (c *Client) listUnits(ctx context.Context, kind string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM processed_units WHERE kind = ? ORDER BY position ASC`, kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s units: %w", kind, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s unit: %w", kind, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Save replaces the stored state with snapshot in one transaction.
func (c *Client) Save(ctx context.Context, snapshot *state.Snapshot) error {
	if snapshot == nil {
		snapshot = state.NewSnapshot()
	}
	// A cancelled run still persists what it finished.
	ctx = context.WithoutCancel(ctx)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.CacheIO("save", "", err)
	}
	defer tx.Rollback()

	if err := replaceAll(ctx, tx, snapshot); err != nil {
		return apperr.CacheIO("save", "", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.CacheIO("save", "", err)
	}
	return nil
}

func replaceAll(ctx context.Context, tx *sql.Tx, snapshot *state.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM archive_hashes`); err != nil {
		return fmt.Errorf("clearing hashes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM processed_units`); err != nil {
		return fmt.Errorf("clearing units: %w", err)
	}

	for identity, hash := range snapshot.Hashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO archive_hashes (identity, hash) VALUES (?, ?)`, identity, hash); err != nil {
			return fmt.Errorf("inserting hash for %s: %w", identity, err)
		}
	}

	units := []struct {
		kind  string
		names []string
	}{
		{kindExtracted, snapshot.Extracted},
		{kindAvatar, snapshot.Avatars},
		{kindPainting, snapshot.Paintings},
	}
	for _, u := range units {
		for i, name := range u.names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO processed_units (kind, name, position) VALUES (?, ?, ?)
				 ON CONFLICT (kind, name) DO NOTHING`, u.kind, name, i); err != nil {
				return fmt.Errorf("inserting %s unit %s: %w", u.kind, name, err)
			}
		}
	}
	return nil
}
