package state

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"gfres/internal/apperr"
)

type Options struct {
	// Full ignores recorded state when gating work. Recorded state is
	// still loaded and extended so nothing is lost on flush.
	Full bool
}

// Cache is the in-memory view of the persisted state shared by all workers
// of one run.
type Cache struct {
	store Store
	full  bool

	mu        sync.Mutex
	hashes    map[string]string
	extracted *Set
	avatars   *Set
	paintings *Set

	// version counts changes; saved is the version last persisted.
	version atomic.Uint64
	saved   uint64
	flushed bool
}

func Open(ctx context.Context, store Store, opts Options) (*Cache, error) {
	snapshot, err := store.Load(ctx)
	if err != nil {
		if apperr.IsFatal(err) {
			return nil, err
		}
		return nil, apperr.CacheIO("load", "", err)
	}
	if snapshot == nil {
		snapshot = NewSnapshot()
	}

	hashes := make(map[string]string, len(snapshot.Hashes))
	for identity, hash := range snapshot.Hashes {
		hashes[identity] = hash
	}

	c := &Cache{
		store:  store,
		full:   opts.Full,
		hashes: hashes,
	}
	c.extracted = newSet(snapshot.Extracted, false, c.touch)
	c.avatars = newSet(snapshot.Avatars, opts.Full, c.touch)
	c.paintings = newSet(snapshot.Paintings, opts.Full, c.touch)
	return c, nil
}

// ShouldExtract reports whether the archive must be (re-)extracted: its
// identity was never extracted, or its content hash changed since.
func (c *Cache) ShouldExtract(identity, hash string) bool {
	if c.full {
		return true
	}
	c.mu.Lock()
	stored, ok := c.hashes[identity]
	c.mu.Unlock()
	if !ok || stored != hash {
		return true
	}
	return !c.extracted.Has(identity)
}

func (c *Cache) RecordExtracted(identity, hash string) {
	c.mu.Lock()
	if c.hashes[identity] != hash {
		c.hashes[identity] = hash
		c.touch()
	}
	c.mu.Unlock()
	c.extracted.Add(identity)
}

func (c *Cache) touch() {
	c.version.Add(1)
}

func (c *Cache) Avatars() *Set {
	return c.avatars
}

func (c *Cache) Paintings() *Set {
	return c.paintings
}

func (c *Cache) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Cache) snapshot() *Snapshot {
	hashes := make(map[string]string, len(c.hashes))
	for identity, hash := range c.hashes {
		hashes[identity] = hash
	}

	return &Snapshot{
		Hashes:    hashes,
		Extracted: c.extracted.Items(),
		Avatars:   c.avatars.Items(),
		Paintings: c.paintings.Items(),
	}
}

// Flush persists the cache when it changed since the last successful
// flush. The first flush of a run always writes. A failed flush leaves the
// cache dirty so a later call retries.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	version := c.version.Load()
	if c.flushed && version == c.saved {
		return nil
	}

	if err := c.store.Save(ctx, c.snapshot()); err != nil {
		if apperr.IsFatal(err) {
			return err
		}
		return apperr.CacheIO("save", "", err)
	}
	c.flushed = true
	c.saved = version
	return nil
}

// Set is a monotonically growing, concurrency-safe set of names. Insertion
// order is kept so persisted arrays stay stable between runs.
type Set struct {
	mu     sync.RWMutex
	items  map[string]struct{}
	order  []string
	ignore bool
	onAdd  func()
}

func newSet(items []string, ignore bool, onAdd func()) *Set {
	s := &Set{items: make(map[string]struct{}, len(items)), ignore: ignore}
	for _, item := range items {
		s.add(item)
	}
	s.onAdd = onAdd
	return s
}

func (s *Set) Has(name string) bool {
	if s.ignore {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[name]
	return ok
}

func (s *Set) Add(name string) {
	s.mu.Lock()
	added := s.add(name)
	s.mu.Unlock()
	if added && s.onAdd != nil {
		s.onAdd()
	}
}

func (s *Set) add(name string) bool {
	if _, ok := s.items[name]; ok {
		return false
	}
	s.items[name] = struct{}{}
	s.order = append(s.order, name)
	return true
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Items returns the members in insertion order.
func (s *Set) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...)
}

// Sorted returns the members in lexicographic order.
func (s *Set) Sorted() []string {
	items := s.Items()
	sort.Strings(items)
	return items
}
