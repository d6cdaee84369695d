package term

import (
	"cmp"
	"slices"
	"strings"
)

// Literal is a functor applied to ordered values plus an annotation set.
// Functor and negation never change after construction; the value and
// annotation slices are only handed out as copies.
type Literal struct {
	functor     Path
	negated     bool
	values      []Term
	annotations []*Literal

	valueHash      uint64
	annotationHash uint64
	hash           uint64
}

// NewLiteral builds a literal. Duplicate annotations are dropped and the
// remaining ones are kept in canonical order.
func NewLiteral(functor Path, negated bool, values []Term, annotations []*Literal) *Literal {
	l := &Literal{
		functor:     functor,
		negated:     negated,
		values:      make([]Term, len(values)),
		annotations: dedupe(annotations),
	}
	for i, v := range values {
		if v == nil {
			v = Empty
		}
		l.values[i] = v
	}

	h := newHasher()
	h.tag(tagLiteral)
	h.string(string(functor))
	if negated {
		h.tag(tagNegated)
	}
	h.uint64(uint64(len(l.values)))
	for _, v := range l.values {
		h.term(v)
	}
	l.valueHash = h.sum()

	// annotation order is irrelevant, so the hash is a commutative sum
	for _, a := range l.annotations {
		l.annotationHash += a.hash
	}

	h = newHasher()
	h.uint64(l.valueHash)
	h.uint64(l.annotationHash)
	l.hash = h.sum()
	return l
}

// From builds a positive literal from a functor string and raw values.
func From(functor string, values ...any) *Literal {
	terms := make([]Term, len(values))
	for i, v := range values {
		terms[i] = Of(v)
	}
	return NewLiteral(PathOf(functor), false, terms, nil)
}

func dedupe(annotations []*Literal) []*Literal {
	out := make([]*Literal, 0, len(annotations))
	for _, a := range annotations {
		if a == nil {
			continue
		}
		if slices.ContainsFunc(out, a.Equal) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Literal) int { return a.Compare(b) })
	return out
}

// WithAnnotations returns a copy of l with the given annotations added.
func (l *Literal) WithAnnotations(annotations ...*Literal) *Literal {
	return NewLiteral(l.functor, l.negated, l.values, append(slices.Clone(l.annotations), annotations...))
}

// Negate returns l with the negation flag flipped.
func (l *Literal) Negate() *Literal {
	return NewLiteral(l.functor, !l.negated, l.values, l.annotations)
}

func (l *Literal) Kind() Kind    { return KindLiteral }
func (l *Literal) Raw() any      { return l }
func (l *Literal) Functor() Path { return l.functor }
func (l *Literal) Negated() bool { return l.negated }

// Key is the storage key of the literal inside its view.
func (l *Literal) Key() string { return l.functor.Suffix() }

func (l *Literal) Arity() int { return len(l.values) }

func (l *Literal) Values() []Term {
	return slices.Clone(l.values)
}

func (l *Literal) Annotations() []*Literal {
	return slices.Clone(l.annotations)
}

func (l *Literal) EmptyValues() bool      { return len(l.values) == 0 }
func (l *Literal) EmptyAnnotations() bool { return len(l.annotations) == 0 }

// ValueHash covers functor, negation and values.
func (l *Literal) ValueHash() uint64 { return l.valueHash }

// AnnotationHash covers the annotation set.
func (l *Literal) AnnotationHash() uint64 { return l.annotationHash }

func (l *Literal) Hash() uint64 { return l.hash }

// Equal reports structural equality including annotations.
func (l *Literal) Equal(o *Literal) bool {
	if l == o {
		return true
	}
	if o == nil || l.hash != o.hash || l.functor != o.functor || l.negated != o.negated {
		return false
	}
	if len(l.values) != len(o.values) || len(l.annotations) != len(o.annotations) {
		return false
	}
	for i := range l.values {
		if !Equal(l.values[i], o.values[i]) {
			return false
		}
	}
	for i := range l.annotations {
		if !l.annotations[i].Equal(o.annotations[i]) {
			return false
		}
	}
	return true
}

// Compare orders literals by functor, negation, values and annotations.
func (l *Literal) Compare(o *Literal) int {
	if c := strings.Compare(string(l.functor), string(o.functor)); c != 0 {
		return c
	}
	if l.negated != o.negated {
		if l.negated {
			return 1
		}
		return -1
	}
	for i := 0; i < len(l.values) && i < len(o.values); i++ {
		if c := Compare(l.values[i], o.values[i]); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(len(l.values), len(o.values)); c != 0 {
		return c
	}
	for i := 0; i < len(l.annotations) && i < len(o.annotations); i++ {
		if c := l.annotations[i].Compare(o.annotations[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(l.annotations), len(o.annotations))
}

// DeepCopy clones values and annotations recursively.
func (l *Literal) DeepCopy() Term {
	return l.Copy()
}

// Copy is DeepCopy with a typed result.
func (l *Literal) Copy() *Literal {
	values := make([]Term, len(l.values))
	for i, v := range l.values {
		values[i] = v.DeepCopy()
	}
	annotations := make([]*Literal, len(l.annotations))
	for i, a := range l.annotations {
		annotations[i] = a.Copy()
	}
	return NewLiteral(l.functor, l.negated, values, annotations)
}

// Variables returns the distinct variables of the value list, nested
// literals and lists included, in order of first occurrence. The anonymous
// variable is skipped.
func (l *Literal) Variables() []*Variable {
	seen := make(map[Path]bool)
	var out []*Variable
	for _, v := range l.values {
		collectVariables(v, seen, &out)
	}
	return out
}

// AllVariables is Variables extended by the variables of the annotations.
func (l *Literal) AllVariables() []*Variable {
	seen := make(map[Path]bool)
	var out []*Variable
	collectVariables(l, seen, &out)
	return out
}

func collectVariables(t Term, seen map[Path]bool, out *[]*Variable) {
	switch x := t.(type) {
	case *Variable:
		if x.Anonymous() || seen[x.path] {
			return
		}
		seen[x.path] = true
		*out = append(*out, x)
	case *Literal:
		for _, v := range x.values {
			collectVariables(v, seen, out)
		}
		for _, a := range x.annotations {
			collectVariables(a, seen, out)
		}
	case *Constant:
		if items, ok := x.value.([]Term); ok {
			for _, v := range items {
				collectVariables(v, seen, out)
			}
		}
	}
}

// Substitute rebuilds t with every variable replaced by f's result. Returning
// nil from f keeps the variable.
func Substitute(t Term, f func(*Variable) Term) Term {
	switch x := t.(type) {
	case *Variable:
		if r := f(x); r != nil {
			return r
		}
		return x
	case *Literal:
		return x.Substitute(f)
	case *Constant:
		items, ok := x.value.([]Term)
		if !ok {
			return x
		}
		out := make([]Term, len(items))
		for i, v := range items {
			out[i] = Substitute(v, f)
		}
		return NewConstant(out)
	}
	return t
}

// Substitute is the typed form of Substitute for literals.
func (l *Literal) Substitute(f func(*Variable) Term) *Literal {
	values := make([]Term, len(l.values))
	for i, v := range l.values {
		values[i] = Substitute(v, f)
	}
	annotations := make([]*Literal, len(l.annotations))
	for i, a := range l.annotations {
		annotations[i] = a.Substitute(f)
	}
	return NewLiteral(l.functor, l.negated, values, annotations)
}

// Bind replaces every bound variable by its resolved value. Unbound
// variables stay in place.
func (l *Literal) Bind() *Literal {
	return l.Substitute(func(v *Variable) Term {
		r := Resolve(v)
		if _, ok := r.(*Variable); ok {
			return nil
		}
		return r
	})
}

// Detach returns a copy of l that shares no variable with it. Bound
// variables are replaced by their resolved values, unbound ones by fresh
// variables of the same path.
func (l *Literal) Detach() *Literal {
	return l.Substitute(detachVariable)
}

func detachVariable(v *Variable) Term {
	r := Resolve(v)
	if rv, ok := r.(*Variable); ok {
		return NewVariable(rv.Path())
	}
	return Substitute(r, detachVariable)
}

// Ground reports whether the literal contains no unbound variables.
// Anonymous variables are never bound.
func (l *Literal) Ground() bool {
	return ground(l)
}

func ground(t Term) bool {
	switch x := t.(type) {
	case *Variable:
		if !x.Bound() {
			return false
		}
		return ground(x.Value())
	case *Literal:
		for _, v := range x.values {
			if !ground(v) {
				return false
			}
		}
		for _, a := range x.annotations {
			if !ground(a) {
				return false
			}
		}
	case *Constant:
		if items, ok := x.value.([]Term); ok {
			for _, v := range items {
				if !ground(v) {
					return false
				}
			}
		}
	}
	return true
}

func (l *Literal) String() string {
	var sb strings.Builder
	if l.negated {
		sb.WriteByte('~')
	}
	sb.WriteString(string(l.functor))
	if len(l.values) > 0 {
		sb.WriteByte('(')
		for i, v := range l.values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte(')')
	}
	if len(l.annotations) > 0 {
		sb.WriteByte('[')
		for i, a := range l.annotations {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte(']')
	}
	return sb.String()
}
