// Package term holds the data model of the agent language: constants,
// variables and literals, together with their hashing, ordering and copy
// semantics.
package term

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Kind tags the variant of a Term.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindConstant
	KindVariable
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindVariable:
		return "variable"
	case KindLiteral:
		return "literal"
	default:
		return "empty"
	}
}

// Term is a value of the agent language.
type Term interface {
	Kind() Kind
	// Raw returns the Go value carried by the term. Variables return the
	// raw value of their binding, literals return themselves.
	Raw() any
	Hash() uint64
	DeepCopy() Term
	String() string
}

type emptyTerm struct{}

// Empty is returned wherever a term cannot be resolved.
var Empty Term = emptyTerm{}

func (emptyTerm) Kind() Kind       { return KindEmpty }
func (emptyTerm) Raw() any         { return nil }
func (emptyTerm) Hash() uint64     { return 0 }
func (e emptyTerm) DeepCopy() Term { return e }
func (emptyTerm) String() string   { return "" }

// IsEmpty reports whether t is nil or the Empty sentinel.
func IsEmpty(t Term) bool {
	return t == nil || t.Kind() == KindEmpty
}

// Resolve follows variable bindings until a non-variable term is reached.
// Unbound variables resolve to themselves.
func Resolve(t Term) Term {
	for i := 0; i < 64; i++ {
		v, ok := t.(*Variable)
		if !ok || !v.Bound() {
			return t
		}
		t = v.Value()
	}
	return t
}

// Equal reports structural equality. Variables compare by path and binding.
func Equal(a, b Term) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Constant:
		return valueEqual(x.value, b.(*Constant).value)
	case *Variable:
		y := b.(*Variable)
		return x.path == y.path && Equal(x.Value(), y.Value())
	case *Literal:
		return x.Equal(b.(*Literal))
	}
	return false
}

func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && (x == y || (math.IsNaN(x) && math.IsNaN(y)))
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []Term:
		y, ok := b.([]Term)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Term:
		y, ok := b.(Term)
		return ok && Equal(x, y)
	}
	if b == nil || reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

// Compare orders terms by kind first, then by value. Values of different Go
// types order by their type name.
func Compare(a, b Term) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch x := a.(type) {
	case *Constant:
		return compareValues(x.value, b.(*Constant).value)
	case *Variable:
		y := b.(*Variable)
		if c := strings.Compare(string(x.path), string(y.path)); c != 0 {
			return c
		}
		return Compare(x.Value(), y.Value())
	case *Literal:
		return x.Compare(b.(*Literal))
	}
	return 0
}

func kindOf(t Term) Kind {
	if t == nil {
		return KindEmpty
	}
	return t.Kind()
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case []Term:
		if y, ok := b.([]Term); ok {
			for i := 0; i < len(x) && i < len(y); i++ {
				if c := Compare(x[i], y[i]); c != 0 {
					return c
				}
			}
			return cmp.Compare(len(x), len(y))
		}
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}
