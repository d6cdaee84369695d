// Package unify matches literals against each other and binds the
// variables that make them equal.
//
// The pattern is the literal that carries values (a trigger literal or a
// stored belief); the candidate is the literal that carries variables (a
// plan head or a query). Candidate variables bind first, pattern variables
// only bind where the candidate side holds a value.
package unify

import (
	"maps"

	"github.com/Harshitk-cp/bdi/internal/term"
)

// Unifier unifies two literals.
type Unifier interface {
	Unify(pattern, candidate *term.Literal) (term.VariableSet, bool)
	UnifyExpected(pattern, candidate *term.Literal, n int) (term.VariableSet, bool)
}

// Default runs the hash algorithm when the value hashes agree and the
// recursive algorithm otherwise. Annotations go through the same two tiers
// independently of the values.
type Default struct{}

func New() *Default {
	return &Default{}
}

func (d *Default) Unify(pattern, candidate *term.Literal) (term.VariableSet, bool) {
	out := term.NewVariableSet()
	if !unifyLiteral(pattern, candidate, out) {
		return nil, false
	}
	return out, true
}

// UnifyExpected succeeds only when exactly n distinct variables were bound.
func (d *Default) UnifyExpected(pattern, candidate *term.Literal, n int) (term.VariableSet, bool) {
	out, ok := d.Unify(pattern, candidate)
	if !ok || out.Len() != n {
		return nil, false
	}
	return out, true
}

// Covers reports whether every variable of candidate is bound in vars or
// matched by the variable with the same path in pattern.
func Covers(vars term.VariableSet, pattern, candidate *term.Literal) bool {
	shared := make(map[term.Path]bool)
	for _, v := range pattern.AllVariables() {
		shared[v.Path()] = true
	}
	for _, v := range candidate.AllVariables() {
		if v.Bound() || shared[v.Path()] {
			continue
		}
		if _, ok := vars.Get(v.Path()); !ok {
			return false
		}
	}
	return true
}

func unifyLiteral(pattern, candidate *term.Literal, out term.VariableSet) bool {
	if pattern.Functor() != candidate.Functor() || pattern.Negated() != candidate.Negated() {
		return false
	}
	if !unifyValues(pattern, candidate, out) {
		return false
	}
	return unifyAnnotations(pattern, candidate, out)
}

func unifyValues(pattern, candidate *term.Literal, out term.VariableSet) bool {
	p, c := pattern.Values(), candidate.Values()
	if pattern.ValueHash() == candidate.ValueHash() && hashAlgorithm(p, c) {
		return true
	}
	return recursiveAlgorithm(p, c, out)
}

// hashAlgorithm confirms positionally that equally hashed values are
// identical. Identical values bind nothing.
func hashAlgorithm(p, c []term.Term) bool {
	if len(p) != len(c) {
		return false
	}
	for i := range p {
		if !term.Equal(p[i], c[i]) {
			return false
		}
	}
	return true
}

// recursiveAlgorithm unifies positionally. A trailing unbound variable on
// the shorter side absorbs the remaining terms of the longer one as a list.
func recursiveAlgorithm(p, c []term.Term, out term.VariableSet) bool {
	switch {
	case len(p) == len(c):
	case len(c) < len(p) && tail(c):
		p = collapse(p, len(c)-1)
	case len(p) < len(c) && tail(p):
		c = collapse(c, len(p)-1)
	default:
		return false
	}
	for i := range p {
		if !unifyTerm(p[i], c[i], out) {
			return false
		}
	}
	return true
}

func tail(ts []term.Term) bool {
	if len(ts) == 0 {
		return false
	}
	v, ok := ts[len(ts)-1].(*term.Variable)
	return ok && !v.Bound()
}

// collapse folds ts[n:] into a single list term.
func collapse(ts []term.Term, n int) []term.Term {
	out := make([]term.Term, 0, n+1)
	out = append(out, ts[:n]...)
	return append(out, term.List(ts[n:]...))
}

func unifyTerm(p, c term.Term, out term.VariableSet) bool {
	p, c = term.Resolve(p), term.Resolve(c)

	if v, ok := c.(*term.Variable); ok {
		return bind(v, p, out)
	}
	if v, ok := p.(*term.Variable); ok {
		return bind(v, c, out)
	}
	if term.IsEmpty(p) || term.IsEmpty(c) {
		return term.IsEmpty(p) && term.IsEmpty(c)
	}

	switch x := p.(type) {
	case *term.Literal:
		y, ok := c.(*term.Literal)
		return ok && unifyLiteral(x, y, out)
	case *term.Constant:
		y, ok := c.(*term.Constant)
		if !ok {
			return false
		}
		xs, xl := x.Items()
		ys, yl := y.Items()
		if xl && yl {
			return recursiveAlgorithm(xs, ys, out)
		}
		return term.Equal(x, y)
	}
	return false
}

// bind records v = t. A variable that is already bound in out must unify
// with t again, which makes repeated variables agree.
func bind(v *term.Variable, t term.Term, out term.VariableSet) bool {
	if v.Anonymous() {
		return true
	}
	if w, ok := t.(*term.Variable); ok && w.Path() == v.Path() {
		return true
	}
	if prev, ok := out.Get(v.Path()); ok {
		return unifyTerm(prev.Value(), t, out)
	}
	out.Add(term.BoundVariable(v.Path(), t))
	return true
}

// unifyAnnotations requires every candidate annotation to unify with some
// pattern annotation. A candidate without annotations accepts any.
func unifyAnnotations(pattern, candidate *term.Literal, out term.VariableSet) bool {
	if candidate.EmptyAnnotations() {
		return true
	}
	pa, ca := pattern.Annotations(), candidate.Annotations()
	if pattern.AnnotationHash() == candidate.AnnotationHash() && len(pa) == len(ca) {
		same := true
		for i := range pa {
			if !pa[i].Equal(ca[i]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	for _, c := range ca {
		matched := false
		for _, p := range pa {
			trial := maps.Clone(out)
			if unifyLiteral(p, c, trial) {
				maps.Copy(out, trial)
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
