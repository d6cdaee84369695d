package belief

import (
	"errors"
	"slices"
	"sync/atomic"

	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
)

var (
	ErrViewExists = errors.New("view already exists")
	ErrViewCycle  = errors.New("view would contain itself")
	ErrDetached   = errors.New("view is detached")
)

// View is a named node in the belief hierarchy. It reads and writes the
// belief base it was created over and owns a private trigger queue on it.
type View struct {
	id       ViewID
	name     string
	arena    *Arena
	base     *Beliefbase
	parent   atomic.Uint64
	detached atomic.Bool
}

func (v *View) ID() ViewID              { return v.id }
func (v *View) Name() string            { return v.name }
func (v *View) Beliefbase() *Beliefbase { return v.base }
func (v *View) Detached() bool          { return v.detached.Load() }

// Parent returns the live parent view.
func (v *View) Parent() (*View, bool) {
	id := ViewID(v.parent.Load())
	if id == 0 {
		return nil, false
	}
	return v.arena.Get(id)
}

// Path joins the names of the ancestors and the view itself.
func (v *View) Path() term.Path {
	names := []string{v.name}
	cur := v
	for i := 0; i < 256; i++ {
		p, ok := cur.Parent()
		if !ok {
			break
		}
		names = append(names, p.name)
		cur = p
	}
	slices.Reverse(names)
	return term.PathOf(names...)
}

// Add stores l and broadcasts ADD_BELIEF. Functor segments before the last
// one address nested views relative to v, which are created on demand. It
// reports false when l was already present.
func (v *View) Add(l *term.Literal) bool {
	target, _ := v.Walk(l.Functor().Prefix(), true)
	return target.base.add(l)
}

// Remove deletes l and broadcasts DELETE_BELIEF.
func (v *View) Remove(l *term.Literal) bool {
	target, ok := v.Walk(l.Functor().Prefix(), false)
	if !ok {
		return false
	}
	return target.base.remove(l)
}

// AddView nests child under v.
func (v *View) AddView(child *View) error {
	if child.Detached() {
		return ErrDetached
	}
	for cur, ok := v, true; ok; cur, ok = cur.Parent() {
		if cur.id == child.id {
			return ErrViewCycle
		}
	}
	if _, ok := v.base.view(child.name); ok {
		return ErrViewExists
	}
	v.base.mu.Lock()
	if _, ok := v.base.views[child.name]; ok {
		v.base.mu.Unlock()
		return ErrViewExists
	}
	v.base.views[child.name] = child.id
	v.base.mu.Unlock()
	child.parent.Store(uint64(v.id))
	return nil
}

// RemoveView unlinks the nested view name. The view itself stays alive
// until it is detached.
func (v *View) RemoveView(name string) bool {
	v.base.mu.Lock()
	id, ok := v.base.views[name]
	delete(v.base.views, name)
	v.base.mu.Unlock()
	if !ok {
		return false
	}
	if child, ok := v.arena.Get(id); ok {
		child.parent.CompareAndSwap(uint64(v.id), 0)
	}
	return true
}

// Literals returns the literals stored directly under key.
func (v *View) Literals(key string) []*term.Literal {
	return v.base.storage.Get(key)
}

// Beliefs returns the literals with the given functor, resolving the
// functor's prefix to nested views.
func (v *View) Beliefs(functor term.Path) []*term.Literal {
	target, ok := v.Walk(functor.Prefix(), false)
	if !ok {
		return nil
	}
	out := target.Literals(functor.Suffix())
	return slices.DeleteFunc(out, func(l *term.Literal) bool { return l.Functor() != functor })
}

// Contains reports whether l is stored.
func (v *View) Contains(l *term.Literal) bool {
	return slices.ContainsFunc(v.Beliefs(l.Functor()), l.Equal)
}

// Stream returns every literal of v and its nested views.
func (v *View) Stream() []*term.Literal {
	out := v.base.storage.Stream()
	for _, c := range v.base.nested() {
		out = append(out, c.Stream()...)
	}
	return out
}

// View returns the nested view key.
func (v *View) View(key string) (*View, bool) {
	return v.base.view(key)
}

// Views returns the nested views in name order.
func (v *View) Views() []*View {
	return v.base.nested()
}

// Walk descends along path, creating missing views when create is set.
func (v *View) Walk(path term.Path, create bool) (*View, bool) {
	cur := v
	for _, seg := range path.Segments() {
		if !create {
			next, ok := cur.View(seg)
			if !ok {
				return nil, false
			}
			cur = next
			continue
		}
		parent := cur
		cur = parent.base.child(seg, func() *View { return v.arena.newChild(seg, parent) })
	}
	return cur, true
}

// Clear broadcasts DELETE_BELIEF for every literal, clears the nested views
// and then empties the storage.
func (v *View) Clear() {
	v.base.clear()
}

// Size counts the literals of v and of all nested views.
func (v *View) Size() int {
	return v.base.size()
}

func (v *View) Empty() bool {
	return v.Size() == 0
}

// Trigger drains the pending triggers of v and its nested views. Each
// trigger is returned at most once.
func (v *View) Trigger() []trigger.Trigger {
	out := v.base.drain(v.id)
	for _, c := range v.base.nested() {
		out = append(out, c.Trigger()...)
	}
	return out
}

// Update reclaims the queues of detached views.
func (v *View) Update() int {
	return v.base.Update()
}

// Detach releases v. Its trigger queue is reclaimed on the next Update of
// its belief base.
func (v *View) Detach() {
	if v.detached.Swap(true) {
		return
	}
	v.arena.release(v.id)
}

func (v *View) String() string {
	return v.Path().String()
}
