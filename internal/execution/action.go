package execution

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
)

// ActionFunc is the body of an action. It returns the values bound to the
// caller's return variables and the fuzzy result of the call.
type ActionFunc func(ctx context.Context, parallel bool, c *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error)

// Action is a named external operation callable from plan bodies.
type Action struct {
	Name             term.Path
	MinimalArguments int
	Execute          ActionFunc
}

// Scorer rates actions for plan selection.
type Scorer interface {
	Score(action term.Path, agent Agent) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(action term.Path, agent Agent) float64

func (f ScorerFunc) Score(action term.Path, agent Agent) float64 { return f(action, agent) }

// Registry maps action paths to actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[term.Path]Action
	scorer  Scorer
}

func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[term.Path]Action)}
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a. Names must be unique.
func (r *Registry) Register(a Action) error {
	if a.Name.Empty() || a.Execute == nil {
		return fmt.Errorf("invalid action %q", a.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[a.Name]; ok {
		return fmt.Errorf("action %q already registered", a.Name)
	}
	r.actions[a.Name] = a
	return nil
}

func (r *Registry) Get(name term.Path) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered paths in order.
func (r *Registry) Names() []term.Path {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]term.Path, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// SetScorer installs s. Without a scorer every action scores 0.
func (r *Registry) SetScorer(s Scorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scorer = s
}

func (r *Registry) score(name term.Path, agent Agent) float64 {
	r.mu.RLock()
	s := r.scorer
	r.mu.RUnlock()
	if s == nil {
		return 0
	}
	return s.Score(name, agent)
}
