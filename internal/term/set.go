package term

import (
	"maps"
	"slices"
	"strings"
)

// VariableSet holds variables keyed by path.
type VariableSet map[Path]*Variable

// NewVariableSet collects vars into a set; the first variable with a given
// path wins.
func NewVariableSet(vars ...*Variable) VariableSet {
	s := make(VariableSet, len(vars))
	for _, v := range vars {
		s.Add(v)
	}
	return s
}

// Add inserts v unless a variable with the same path is present. It reports
// whether v was inserted.
func (s VariableSet) Add(v *Variable) bool {
	if _, ok := s[v.path]; ok {
		return false
	}
	s[v.path] = v
	return true
}

func (s VariableSet) Get(p Path) (*Variable, bool) {
	v, ok := s[p]
	return v, ok
}

func (s VariableSet) Len() int { return len(s) }

// Sorted returns the variables ordered by path.
func (s VariableSet) Sorted() []*Variable {
	keys := slices.Sorted(maps.Keys(s))
	out := make([]*Variable, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

func (s VariableSet) String() string {
	parts := make([]string, 0, len(s))
	for _, v := range s.Sorted() {
		parts = append(parts, v.String()+"="+v.Value().String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
