// Package belief implements the hierarchical, reactive belief store. Views
// form a tree of named namespaces; every change to a belief base is
// broadcast as a trigger to each view registered on it.
package belief

import (
	"maps"
	"slices"
	"sync"

	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
)

// Beliefbase is one segment of the store: literals grouped by functor key
// plus named nested views.
type Beliefbase struct {
	arena   *Arena
	storage Storage

	mu     sync.RWMutex
	views  map[string]ViewID
	events map[ViewID]*queue
}

func newBeliefbase(arena *Arena, storage Storage) *Beliefbase {
	return &Beliefbase{
		arena:   arena,
		storage: storage,
		views:   make(map[string]ViewID),
		events:  make(map[ViewID]*queue),
	}
}

// Storage returns the backing storage.
func (b *Beliefbase) Storage() Storage {
	return b.storage
}

func (b *Beliefbase) register(id ViewID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.events[id]; !ok {
		b.events[id] = &queue{}
	}
}

func (b *Beliefbase) add(l *term.Literal) bool {
	if !b.storage.Put(l) {
		return false
	}
	b.broadcast(trigger.New(trigger.AddBelief, l))
	return true
}

func (b *Beliefbase) remove(l *term.Literal) bool {
	if !b.storage.Remove(l) {
		return false
	}
	b.broadcast(trigger.New(trigger.DeleteBelief, l))
	return true
}

func (b *Beliefbase) broadcast(t trigger.Trigger) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, q := range b.events {
		q.push(t)
	}
}

// nested returns the live nested views in name order.
func (b *Beliefbase) nested() []*View {
	b.mu.RLock()
	names := slices.Sorted(maps.Keys(b.views))
	ids := make([]ViewID, len(names))
	for i, n := range names {
		ids[i] = b.views[n]
	}
	b.mu.RUnlock()

	out := make([]*View, 0, len(ids))
	for _, id := range ids {
		if v, ok := b.arena.Get(id); ok {
			out = append(out, v)
		}
	}
	return out
}

func (b *Beliefbase) view(name string) (*View, bool) {
	b.mu.RLock()
	id, ok := b.views[name]
	b.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return b.arena.Get(id)
}

// child returns the nested view name, creating it with create when absent.
func (b *Beliefbase) child(name string, create func() *View) *View {
	if v, ok := b.view(name); ok {
		return v
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.views[name]; ok {
		if v, ok := b.arena.Get(id); ok {
			return v
		}
	}
	v := create()
	b.views[name] = v.id
	return v
}

func (b *Beliefbase) drain(id ViewID) []trigger.Trigger {
	b.mu.RLock()
	q, ok := b.events[id]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	return q.drain()
}

func (b *Beliefbase) clear() {
	for _, l := range b.storage.Stream() {
		b.broadcast(trigger.New(trigger.DeleteBelief, l))
	}
	for _, v := range b.nested() {
		v.Clear()
	}
	b.storage.Clear()
}

func (b *Beliefbase) size() int {
	n := b.storage.Size()
	for _, v := range b.nested() {
		n += v.Size()
	}
	return n
}

// Update drops the trigger queues and nested entries of detached views and
// recurses into the nested views. It returns the number of reclaimed
// entries.
func (b *Beliefbase) Update() int {
	b.mu.Lock()
	var reclaimed int
	for id := range b.events {
		if _, ok := b.arena.Get(id); !ok {
			delete(b.events, id)
			reclaimed++
		}
	}
	for name, id := range b.views {
		if _, ok := b.arena.Get(id); !ok {
			delete(b.views, name)
			reclaimed++
		}
	}
	b.mu.Unlock()

	for _, v := range b.nested() {
		if v.base != b {
			reclaimed += v.base.Update()
		}
	}
	return reclaimed
}

// queue is the private trigger queue of one view. Pending triggers are a
// set; pushing an equal trigger twice keeps one.
type queue struct {
	mu      sync.Mutex
	pending []trigger.Trigger
	seen    map[uint64][]trigger.Trigger
}

func (q *queue) push(t trigger.Trigger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen == nil {
		q.seen = make(map[uint64][]trigger.Trigger)
	}
	h := t.Hash()
	if slices.ContainsFunc(q.seen[h], t.Equal) {
		return
	}
	q.seen[h] = append(q.seen[h], t)
	q.pending = append(q.pending, t)
}

func (q *queue) drain() []trigger.Trigger {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	q.seen = nil
	return out
}
