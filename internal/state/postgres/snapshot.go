package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gfres/internal/apperr"
	"gfres/internal/state"
)

func (c *Client) Load(ctx context.Context) (*state.Snapshot, error) {
	snapshot := state.NewSnapshot()

	rows, err := c.pool.Query(ctx, `SELECT identity, hash FROM archive_hashes`)
	if err != nil {
		return nil, apperr.CacheIO("load", "archive_hashes", err)
	}
	for rows.Next() {
		var identity, hash string
		if err := rows.Scan(&identity, &hash); err != nil {
			rows.Close()
			return nil, apperr.CacheIO("load", "archive_hashes", err)
		}
		snapshot.Hashes[identity] = hash
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.CacheIO("load", "archive_hashes", err)
	}

	rows, err = c.pool.Query(ctx, `SELECT kind, name FROM processed_units ORDER BY kind, position`)
	if err != nil {
		return nil, apperr.CacheIO("load", "processed_units", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, apperr.CacheIO("load", "processed_units", err)
		}
		switch kind {
		case kindExtracted:
			snapshot.Extracted = append(snapshot.Extracted, name)
		case kindAvatar:
			snapshot.Avatars = append(snapshot.Avatars, name)
		case kindPainting:
			snapshot.Paintings = append(snapshot.Paintings, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.CacheIO("load", "processed_units", err)
	}
	return snapshot, nil
}

// Save replaces the stored state with snapshot in one transaction.
func (c *Client) Save(ctx context.Context, snapshot *state.Snapshot) error {
	if snapshot == nil {
		snapshot = state.NewSnapshot()
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return apperr.CacheIO("save", "", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM archive_hashes`)
	batch.Queue(`DELETE FROM processed_units`)
	for identity, hash := range snapshot.Hashes {
		batch.Queue(`INSERT INTO archive_hashes (identity, hash) VALUES ($1, $2)`, identity, hash)
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
			batch.Queue(`INSERT INTO processed_units (kind, name, position) VALUES ($1, $2, $3)
				ON CONFLICT (kind, name) DO NOTHING`, u.kind, name, i)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperr.CacheIO("save", "", fmt.Errorf("writing state batch: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.CacheIO("save", "", err)
	}
	return nil
}
