package state

import "context"

// Snapshot is the full persisted pipeline state. It is loaded once at the
// start of a run and written back in full at the end.
type Snapshot struct {
	Hashes    map[string]string
	Extracted []string
	Avatars   []string
	Paintings []string
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Hashes: map[string]string{}}
}

type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Close(ctx context.Context) error
}
