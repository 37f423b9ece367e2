package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"gfres/internal/apperr"
	"gfres/internal/fsutil"
)

var _ Store = (*FileStore)(nil)

type FilePaths struct {
	Hashes    string
	Extracted string
	Avatars   string
	Paintings string
}

// FileStore keeps each part of the snapshot in its own human-readable JSON
// file. Files are replaced atomically on save.
type FileStore struct {
	paths FilePaths
}

func NewFileStore(paths FilePaths) *FileStore {
	return &FileStore{paths: paths}
}

func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	snapshot := NewSnapshot()
	if err := readJSON(s.paths.Hashes, &snapshot.Hashes); err != nil {
		return nil, err
	}
	if snapshot.Hashes == nil {
		snapshot.Hashes = map[string]string{}
	}
	if err := readJSON(s.paths.Extracted, &snapshot.Extracted); err != nil {
		return nil, err
	}
	if err := readJSON(s.paths.Avatars, &snapshot.Avatars); err != nil {
		return nil, err
	}
	if err := readJSON(s.paths.Paintings, &snapshot.Paintings); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *FileStore) Save(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	hashes := snapshot.Hashes
	if hashes == nil {
		hashes = map[string]string{}
	}
	writes := []struct {
		path  string
		value any
	}{
		{s.paths.Hashes, hashes},
		{s.paths.Extracted, nonNil(snapshot.Extracted)},
		{s.paths.Avatars, nonNil(snapshot.Avatars)},
		{s.paths.Paintings, nonNil(snapshot.Paintings)},
	}
	// Writes ignore ctx: a cancelled run still persists what it finished.
	for _, w := range writes {
		if err := fsutil.WriteJSON(w.path, w.value); err != nil {
			return apperr.CacheIO("save", w.path, err)
		}
	}
	return nil
}

func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

func readJSON(path string, dest any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperr.CacheIO("load", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	// Files written by older tooling encode an empty mapping as [].
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return apperr.CacheIO("load", path, err)
	}
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
