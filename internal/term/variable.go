package term

import "sync/atomic"

// Anonymous is the name of the variable that matches anything without
// binding.
const Anonymous = "_"

type binding struct {
	term Term
}

// Variable is a named slot that may be bound to a term. Plain variables are
// not safe for concurrent writes; mutex variables keep their binding in an
// atomically swapped cell and may carry a relocation target that receives
// their value when Relocate is called.
type Variable struct {
	path     Path
	mutex    bool
	relocate *Variable
	value    Term
	cell     atomic.Pointer[binding]
}

// NewVariable returns an unbound variable.
func NewVariable(path Path) *Variable {
	return &Variable{path: path}
}

// BoundVariable returns a variable bound to value.
func BoundVariable(path Path, value Term) *Variable {
	return NewVariable(path).Set(value)
}

// NewMutexVariable returns an unbound, concurrency safe variable.
func NewMutexVariable(path Path) *Variable {
	return &Variable{path: path, mutex: true}
}

// NewRelocateVariable returns a mutex variable with the path and current
// value of target that writes its value back into target on Relocate.
func NewRelocateVariable(target *Variable) *Variable {
	v := &Variable{path: target.path, mutex: true, relocate: target}
	return v.Set(target.Value())
}

func (v *Variable) Kind() Kind   { return KindVariable }
func (v *Variable) Path() Path   { return v.path }
func (v *Variable) Name() string { return v.path.Suffix() }
func (v *Variable) Mutex() bool  { return v.mutex }

// Anonymous reports whether the variable is the match-all "_".
func (v *Variable) Anonymous() bool {
	return v.path == Anonymous
}

// Target returns the relocation target, nil for plain variables.
func (v *Variable) Target() *Variable {
	return v.relocate
}

// Value returns the bound term or Empty.
func (v *Variable) Value() Term {
	var t Term
	if v.mutex {
		if b := v.cell.Load(); b != nil {
			t = b.term
		}
	} else {
		t = v.value
	}
	if t == nil {
		return Empty
	}
	return t
}

// Bound reports whether the variable holds a value.
func (v *Variable) Bound() bool {
	return !IsEmpty(v.Value())
}

// Set binds the variable and returns it. A nil or Empty term unbinds.
func (v *Variable) Set(t Term) *Variable {
	if IsEmpty(t) {
		t = nil
	}
	if v.mutex {
		v.cell.Store(&binding{term: t})
	} else {
		v.value = t
	}
	return v
}

// Update replaces the value with f(current). On mutex variables the swap is
// atomic and f may run more than once.
func (v *Variable) Update(f func(Term) Term) *Variable {
	if !v.mutex {
		return v.Set(f(v.Value()))
	}
	for {
		old := v.cell.Load()
		var cur Term = Empty
		if old != nil && old.term != nil {
			cur = old.term
		}
		next := f(cur)
		if IsEmpty(next) {
			next = nil
		}
		if v.cell.CompareAndSwap(old, &binding{term: next}) {
			return v
		}
	}
}

// Raw returns the raw value of the resolved binding, nil when unbound.
func (v *Variable) Raw() any {
	t := Resolve(v)
	if _, ok := t.(*Variable); ok {
		return nil
	}
	return t.Raw()
}

// Hash identifies a variable by its path only.
func (v *Variable) Hash() uint64 {
	h := newHasher()
	h.tag(tagVariable)
	h.string(string(v.path))
	return h.sum()
}

// ShallowCopy returns a new slot holding the same value. The optional prefix
// is prepended to the path.
func (v *Variable) ShallowCopy(prefix ...Path) *Variable {
	c := &Variable{path: v.prefixed(prefix), mutex: v.mutex, relocate: v.relocate}
	return c.Set(v.Value())
}

// DeepCopy returns a copy whose value is deep copied as well.
func (v *Variable) DeepCopy() Term {
	c := &Variable{path: v.path, mutex: v.mutex, relocate: v.relocate}
	if val := v.Value(); !IsEmpty(val) {
		c.Set(val.DeepCopy())
	}
	return c
}

// Relocate publishes the value into the relocation target and returns the
// target. Variables without a target return themselves.
func (v *Variable) Relocate() *Variable {
	if v.relocate == nil {
		return v
	}
	return v.relocate.Set(v.Value())
}

func (v *Variable) prefixed(prefix []Path) Path {
	if len(prefix) == 0 || prefix[0].Empty() {
		return v.path
	}
	return prefix[0].Append(v.path)
}

func (v *Variable) String() string {
	return string(v.path)
}
