package belief

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Harshitk-cp/bdi/internal/term"
)

// Storage holds the literals of one belief base segment, grouped by functor
// key. Implementations synchronise per key and report failures as false.
type Storage interface {
	// Stream returns every literal, grouped by key in key order.
	Stream() []*term.Literal
	// Get returns the literals stored under key in insertion order.
	Get(key string) []*term.Literal
	Contains(key string) bool
	// Put stores l under its key. It reports false for duplicates.
	Put(l *term.Literal) bool
	Remove(l *term.Literal) bool
	Clear()
	Size() int
}

// StorageFactory creates the storage for the view at path.
type StorageFactory func(path term.Path) Storage

// MemoryStorage is the default in-process Storage.
type MemoryStorage struct {
	buckets sync.Map // string -> *bucket
	size    atomic.Int64
}

type bucket struct {
	mu     sync.RWMutex
	items  []*term.Literal
	byHash map[uint64][]*term.Literal
	// dead is set once Clear has unlinked the bucket from the map.
	dead bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// NewMemoryFactory returns a factory that ignores the path.
func NewMemoryFactory() StorageFactory {
	return func(term.Path) Storage { return NewMemoryStorage() }
}

func (s *MemoryStorage) bucket(key string, create bool) *bucket {
	if b, ok := s.buckets.Load(key); ok {
		return b.(*bucket)
	}
	if !create {
		return nil
	}
	b, _ := s.buckets.LoadOrStore(key, &bucket{byHash: make(map[uint64][]*term.Literal)})
	return b.(*bucket)
}

// lock returns the live bucket for key with its write lock held. A bucket
// that Clear unlinked while we waited is skipped and the lookup retried.
func (s *MemoryStorage) lock(key string, create bool) *bucket {
	for {
		b := s.bucket(key, create)
		if b == nil {
			return nil
		}
		b.mu.Lock()
		if !b.dead {
			return b
		}
		b.mu.Unlock()
	}
}

func (s *MemoryStorage) keys() []string {
	var keys []string
	s.buckets.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.Sort(keys)
	return keys
}

func (s *MemoryStorage) Stream() []*term.Literal {
	var out []*term.Literal
	for _, k := range s.keys() {
		out = append(out, s.Get(k)...)
	}
	return out
}

func (s *MemoryStorage) Get(key string) []*term.Literal {
	b := s.bucket(key, false)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.items)
}

func (s *MemoryStorage) Contains(key string) bool {
	b := s.bucket(key, false)
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items) > 0
}

func (s *MemoryStorage) Put(l *term.Literal) bool {
	b := s.lock(l.Key(), true)
	defer b.mu.Unlock()
	if slices.ContainsFunc(b.byHash[l.Hash()], l.Equal) {
		return false
	}
	b.items = append(b.items, l)
	b.byHash[l.Hash()] = append(b.byHash[l.Hash()], l)
	s.size.Add(1)
	return true
}

func (s *MemoryStorage) Remove(l *term.Literal) bool {
	b := s.lock(l.Key(), false)
	if b == nil {
		return false
	}
	defer b.mu.Unlock()
	same := b.byHash[l.Hash()]
	i := slices.IndexFunc(same, l.Equal)
	if i < 0 {
		return false
	}
	if len(same) == 1 {
		delete(b.byHash, l.Hash())
	} else {
		b.byHash[l.Hash()] = slices.Delete(same, i, i+1)
	}
	b.items = slices.DeleteFunc(b.items, l.Equal)
	s.size.Add(-1)
	return true
}

func (s *MemoryStorage) Clear() {
	for _, k := range s.keys() {
		if b, ok := s.buckets.LoadAndDelete(k); ok {
			bk := b.(*bucket)
			bk.mu.Lock()
			s.size.Add(-int64(len(bk.items)))
			bk.items = nil
			bk.byHash = nil
			bk.dead = true
			bk.mu.Unlock()
		}
	}
}

func (s *MemoryStorage) Size() int {
	return int(s.size.Load())
}
