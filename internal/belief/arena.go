package belief

import (
	"sync"
	"sync/atomic"

	"github.com/Harshitk-cp/bdi/internal/term"
	"go.uber.org/zap"
)

// ViewID is the stable handle of a view inside its Arena. The zero value
// names no view.
type ViewID uint64

// Arena owns every view of an agent. Views refer to their parent by id, so
// releasing a view never leaves a dangling pointer.
type Arena struct {
	mu      sync.RWMutex
	views   map[ViewID]*View
	next    atomic.Uint64
	storage StorageFactory
	logger  *zap.Logger
}

// NewArena returns an empty arena. A nil factory selects in-memory storage.
func NewArena(storage StorageFactory, logger *zap.Logger) *Arena {
	if storage == nil {
		storage = NewMemoryFactory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{
		views:   make(map[ViewID]*View),
		storage: storage,
		logger:  logger,
	}
}

// NewView creates a root view with a fresh belief base.
func (a *Arena) NewView(name string) *View {
	base := newBeliefbase(a, a.storage(term.PathOf(name)))
	return a.Attach(name, base)
}

// Attach creates a root view over an existing belief base. The view
// receives every trigger the base emits from now on.
func (a *Arena) Attach(name string, base *Beliefbase) *View {
	v := &View{
		id:    ViewID(a.next.Add(1)),
		name:  name,
		arena: a,
		base:  base,
	}
	a.mu.Lock()
	a.views[v.id] = v
	a.mu.Unlock()
	base.register(v.id)
	return v
}

func (a *Arena) newChild(name string, parent *View) *View {
	base := newBeliefbase(a, a.storage(parent.Path().Append(term.PathOf(name))))
	v := a.Attach(name, base)
	v.parent.Store(uint64(parent.id))
	return v
}

// Get returns a live view by id.
func (a *Arena) Get(id ViewID) (*View, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.views[id]
	return v, ok
}

// Len returns the number of live views.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.views)
}

func (a *Arena) release(id ViewID) {
	a.mu.Lock()
	delete(a.views, id)
	a.mu.Unlock()
	a.logger.Debug("view released", zap.Uint64("view_id", uint64(id)))
}
