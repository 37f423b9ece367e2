package pipeline

import (
	"context"
	"fmt"

	"gfres/internal/config"
	"gfres/internal/state"
	"gfres/internal/state/postgres"
	"gfres/internal/state/sqlite"
)

// OpenStore returns the state backend selected by the config.
func OpenStore(ctx context.Context, cfg config.StateConfig) (state.Store, error) {
	switch cfg.Driver {
	case config.StateDriverJSON, "":
		return state.NewFileStore(state.FilePaths{
			Hashes:    cfg.Live2DHash,
			Extracted: cfg.ExtractedLive2D,
			Avatars:   cfg.ArchivedAvatars,
			Paintings: cfg.ArchivedPaintings,
		}), nil
	case config.StateDriverSQLite:
		client, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite state: %w", err)
		}
		return client, nil
	case config.StateDriverPostgres:
		client, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres state: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported state driver: %s", cfg.Driver)
	}
}
