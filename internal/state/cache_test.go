package state

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"gfres/internal/apperr"
)

type memoryStore struct {
	snapshot *Snapshot
	saved    []*Snapshot
	loadErr  error
	saveErr  error
}

func (m *memoryStore) Load(ctx context.Context) (*Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.snapshot, nil
}

func (m *memoryStore) Save(ctx context.Context, snapshot *Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, snapshot)
	return nil
}

func (m *memoryStore) Close(ctx context.Context) error { return nil }

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestShouldExtract(t *testing.T) {
	ctx := context.Background()
	archive := []byte("UnityFS live2d payload")
	hash := md5Hex(archive)

	t.Run("unknown archive is extracted", func(t *testing.T) {
		cache, err := Open(ctx, &memoryStore{snapshot: NewSnapshot()}, Options{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !cache.ShouldExtract("live2dnewgunAK47.ab", hash) {
			t.Fatalf("expected extraction for unknown archive")
		}
	})

	t.Run("unchanged extracted archive is skipped", func(t *testing.T) {
		store := &memoryStore{snapshot: &Snapshot{
			Hashes:    map[string]string{"live2dnewgunAK47.ab": hash},
			Extracted: []string{"live2dnewgunAK47.ab"},
		}}
		cache, err := Open(ctx, store, Options{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cache.ShouldExtract("live2dnewgunAK47.ab", hash) {
			t.Fatalf("expected skip for unchanged archive")
		}

		changed := append([]byte{}, archive...)
		changed[0] ^= 0xFF
		if !cache.ShouldExtract("live2dnewgunAK47.ab", md5Hex(changed)) {
			t.Fatalf("expected extraction after a one byte change")
		}
	})

	t.Run("hash without extracted entry is extracted", func(t *testing.T) {
		store := &memoryStore{snapshot: &Snapshot{Hashes: map[string]string{"a.ab": hash}}}
		cache, _ := Open(ctx, store, Options{})
		if !cache.ShouldExtract("a.ab", hash) {
			t.Fatalf("expected extraction when identity missing from extracted set")
		}
	})

	t.Run("full mode ignores state", func(t *testing.T) {
		store := &memoryStore{snapshot: &Snapshot{
			Hashes:    map[string]string{"a.ab": hash},
			Extracted: []string{"a.ab"},
			Avatars:   []string{"ak47"},
		}}
		cache, _ := Open(ctx, store, Options{Full: true})
		if !cache.ShouldExtract("a.ab", hash) {
			t.Fatalf("expected extraction in full mode")
		}
		if cache.Avatars().Has("ak47") {
			t.Fatalf("expected membership to be ignored in full mode")
		}
		if got := cache.Snapshot().Avatars; !reflect.DeepEqual(got, []string{"ak47"}) {
			t.Fatalf("expected recorded avatars kept, got %v", got)
		}
	})
}

func TestRecordExtracted(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{snapshot: NewSnapshot()}
	cache, err := Open(ctx, store, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	cache.RecordExtracted("live2dnewgunAK47.ab", "h1")
	if cache.ShouldExtract("live2dnewgunAK47.ab", "h1") {
		t.Fatalf("expected skip after recording")
	}
	cache.RecordExtracted("live2dnewgunAK47.ab", "h2")

	snapshot := cache.Snapshot()
	if snapshot.Hashes["live2dnewgunAK47.ab"] != "h2" {
		t.Fatalf("expected updated hash, got %q", snapshot.Hashes["live2dnewgunAK47.ab"])
	}
	if !reflect.DeepEqual(snapshot.Extracted, []string{"live2dnewgunAK47.ab"}) {
		t.Fatalf("expected single extracted entry, got %v", snapshot.Extracted)
	}
}

func TestConcurrentRecording(t *testing.T) {
	cache, err := Open(context.Background(), &memoryStore{snapshot: NewSnapshot()}, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := filepath.Join("archive", string(rune('a'+i%26)))
			cache.RecordExtracted(name, "hash")
			cache.Paintings().Add(name)
		}(i)
	}
	wg.Wait()
	if got := cache.Paintings().Len(); got != 26 {
		t.Fatalf("expected 26 distinct paintings, got %d", got)
	}
	if got := len(cache.Snapshot().Extracted); got != 26 {
		t.Fatalf("expected 26 distinct archives, got %d", got)
	}
}

func TestFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("flushes once", func(t *testing.T) {
		store := &memoryStore{snapshot: NewSnapshot()}
		cache, _ := Open(ctx, store, Options{})
		cache.Avatars().Add("ak47")
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(store.saved) != 1 {
			t.Fatalf("expected one save, got %d", len(store.saved))
		}
		if !reflect.DeepEqual(store.saved[0].Avatars, []string{"ak47"}) {
			t.Fatalf("unexpected saved avatars: %v", store.saved[0].Avatars)
		}
	})

	t.Run("save failure is fatal", func(t *testing.T) {
		store := &memoryStore{snapshot: NewSnapshot(), saveErr: errors.New("disk full")}
		cache, _ := Open(ctx, store, Options{})
		err := cache.Flush(ctx)
		if !apperr.IsFatal(err) {
			t.Fatalf("expected fatal cache error, got %v", err)
		}
	})

	t.Run("changes after flush are saved again", func(t *testing.T) {
		store := &memoryStore{snapshot: NewSnapshot()}
		cache, _ := Open(ctx, store, Options{})
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.Paintings().Add("m4a1")
		cache.Paintings().Add("m4a1")
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.Paintings().Add("m4a1")
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(store.saved) != 2 {
			t.Fatalf("expected two saves, got %d", len(store.saved))
		}
		if !reflect.DeepEqual(store.saved[1].Paintings, []string{"m4a1"}) {
			t.Fatalf("unexpected saved paintings: %v", store.saved[1].Paintings)
		}
	})

	t.Run("failed flush is retried", func(t *testing.T) {
		store := &memoryStore{snapshot: NewSnapshot(), saveErr: errors.New("disk full")}
		cache, _ := Open(ctx, store, Options{})
		cache.RecordExtracted("a.ab", "abc")
		if err := cache.Flush(ctx); err == nil {
			t.Fatal("expected save error")
		}
		store.saveErr = nil
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(store.saved) != 1 {
			t.Fatalf("expected one save, got %d", len(store.saved))
		}
		if store.saved[0].Hashes["a.ab"] != "abc" {
			t.Fatalf("unexpected saved hashes: %v", store.saved[0].Hashes)
		}
	})

	t.Run("load failure is fatal", func(t *testing.T) {
		_, err := Open(ctx, &memoryStore{loadErr: errors.New("corrupt")}, Options{})
		if !errors.Is(err, apperr.ErrCacheIO) {
			t.Fatalf("expected cache io error, got %v", err)
		}
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	paths := FilePaths{
		Hashes:    filepath.Join(dir, "state", "live2d_hash.json"),
		Extracted: filepath.Join(dir, "state", "extracted_live2d.json"),
		Avatars:   filepath.Join(dir, "state", "archived_avatars.json"),
		Paintings: filepath.Join(dir, "state", "archived_paintings.json"),
	}

	t.Run("missing files load empty", func(t *testing.T) {
		snapshot, err := NewFileStore(paths).Load(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(snapshot.Hashes) != 0 || len(snapshot.Extracted) != 0 {
			t.Fatalf("expected empty snapshot, got %#v", snapshot)
		}
	})

	t.Run("round trip through cache", func(t *testing.T) {
		store := NewFileStore(paths)
		cache, err := Open(ctx, store, Options{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.RecordExtracted("live2dnewgunAK47.ab", "abc")
		cache.Avatars().Add("ak47")
		cache.Paintings().Add("ak47")
		if err := cache.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}

		reopened, err := Open(ctx, NewFileStore(paths), Options{})
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if reopened.ShouldExtract("live2dnewgunAK47.ab", "abc") {
			t.Fatalf("expected persisted archive to be skipped")
		}
		if !reopened.Avatars().Has("ak47") || !reopened.Paintings().Has("ak47") {
			t.Fatalf("expected persisted membership")
		}

		data, err := os.ReadFile(paths.Extracted)
		if err != nil {
			t.Fatalf("reading extracted file: %v", err)
		}
		want := "[\n    \"live2dnewgunAK47.ab\"\n]\n"
		if string(data) != want {
			t.Fatalf("expected %q, got %q", want, string(data))
		}
	})

	t.Run("empty mapping written as array loads", func(t *testing.T) {
		if err := os.WriteFile(paths.Hashes, []byte("[]"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		snapshot, err := NewFileStore(paths).Load(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if snapshot.Hashes == nil || len(snapshot.Hashes) != 0 {
			t.Fatalf("expected empty hashes, got %#v", snapshot.Hashes)
		}
	})

	t.Run("corrupt file is a cache error", func(t *testing.T) {
		if err := os.WriteFile(paths.Avatars, []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := NewFileStore(paths).Load(ctx)
		if !errors.Is(err, apperr.ErrCacheIO) {
			t.Fatalf("expected cache io error, got %v", err)
		}
	})
}
