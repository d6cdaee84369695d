package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	p := PathOf("agent", "/goal/", "", "move")
	assert.Equal(t, Path("agent/goal/move"), p)
	assert.Equal(t, "move", p.Suffix())
	assert.Equal(t, Path("agent/goal"), p.Prefix())
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, Path("x/agent/goal/move"), Path("x").Append(p))
	assert.True(t, Path("").Empty())
	assert.Nil(t, Path("").Segments())
}

func TestConstant_NormalisesNumbers(t *testing.T) {
	a := NewConstant(1)
	b := NewConstant(1.0)
	c := NewConstant(int64(1))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, b.Hash(), c.Hash())
	assert.True(t, Equal(a, c))

	n, ok := a.Number()
	require.True(t, ok)
	assert.Equal(t, 1.0, n)
}

func TestConstant_OpaqueValuesCompareByIdentity(t *testing.T) {
	type payload struct{ n int }
	p1, p2 := &payload{1}, &payload{1}

	assert.False(t, Equal(NewConstant(p1), NewConstant(p2)))
	assert.True(t, Equal(NewConstant(p1), NewConstant(p1)))
	assert.True(t, Equal(NewConstant("foobar"), NewConstant("foobar")))
}

func TestLiteral_EqualLiteralsShareHashes(t *testing.T) {
	a := From("foo", 1, "x").WithAnnotations(From("source", "self"), From("weight", 2))
	b := From("foo", 1.0, "x").WithAnnotations(From("weight", 2), From("source", "self"))

	assert.Equal(t, a.ValueHash(), b.ValueHash())
	assert.Equal(t, a.AnnotationHash(), b.AnnotationHash())
	assert.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
}

func TestLiteral_NegationChangesValueHash(t *testing.T) {
	a := From("foo", 1)
	b := a.Negate()

	assert.NotEqual(t, a.ValueHash(), b.ValueHash())
	assert.True(t, b.Negated())
	assert.False(t, a.Equal(b))
	assert.Equal(t, "~foo(1)", b.String())
}

func TestLiteral_DuplicateAnnotationsDropped(t *testing.T) {
	l := From("foo").WithAnnotations(From("a"), From("a"), From("b"))
	assert.Len(t, l.Annotations(), 2)
}

func TestLiteral_ValuesAreCopies(t *testing.T) {
	l := From("foo", 1, 2)
	values := l.Values()
	values[0] = NewConstant(99)

	assert.Equal(t, "foo(1, 2)", l.String())
}

func TestLiteral_Variables(t *testing.T) {
	x := NewVariable("X")
	y := NewVariable("Y")
	inner := NewLiteral("bar", false, []Term{x, NewVariable(Anonymous)}, nil)
	l := NewLiteral("foo", false, []Term{x, inner, List(y)}, []*Literal{
		NewLiteral("source", false, []Term{NewVariable("S")}, nil),
	})

	vars := l.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, Path("X"), vars[0].Path())
	assert.Equal(t, Path("Y"), vars[1].Path())
	assert.Len(t, l.AllVariables(), 3)
	assert.False(t, l.Ground())
}

func TestLiteral_DeepCopyIsIndependent(t *testing.T) {
	x := BoundVariable("X", NewConstant(1))
	l := NewLiteral("foo", false, []Term{x}, nil)

	cp := l.Copy()
	cpVar := cp.Values()[0].(*Variable)
	cpVar.Set(NewConstant(2))

	assert.Equal(t, 1.0, x.Raw())
	assert.Equal(t, 2.0, cpVar.Raw())
}

func TestLiteral_Substitute(t *testing.T) {
	l := NewLiteral("foo", false, []Term{NewVariable("X"), NewConstant("a")}, nil)
	out := l.Substitute(func(v *Variable) Term {
		if v.Path() == "X" {
			return NewConstant(5)
		}
		return nil
	})

	assert.Equal(t, "foo(5, \"a\")", out.String())
	assert.True(t, out.Ground())
}

func TestLiteral_DetachSharesNoVariables(t *testing.T) {
	x := NewVariable("X")
	y := BoundVariable("Y", NewConstant(3))
	ann := NewLiteral("source", false, []Term{x}, nil)
	l := NewLiteral("foo", false, []Term{x, y, NewConstant([]Term{x})}, []*Literal{ann})

	d := l.Detach()
	require.Equal(t, "foo(X, 3, [X])[source(X)]", d.String())

	x.Set(NewConstant(5))
	y.Set(NewConstant(4))

	assert.False(t, d.Ground())
	assert.Equal(t, 3.0, d.Values()[1].Raw())
	dx, ok := d.Values()[0].(*Variable)
	require.True(t, ok)
	assert.Equal(t, Path("X"), dx.Path())
	assert.False(t, dx.Bound())
	assert.Equal(t, "foo(5, 4, [5])[source(5)]", l.Bind().String())
}

func TestVariable_UnboundReadsEmpty(t *testing.T) {
	v := NewVariable("X")
	assert.False(t, v.Bound())
	assert.True(t, IsEmpty(v.Value()))
	assert.Nil(t, v.Raw())

	m := NewMutexVariable("M")
	assert.True(t, IsEmpty(m.Value()))
}

func TestVariable_ShallowCopyKeepsValueIdentity(t *testing.T) {
	inner := From("bar", 1)
	v := BoundVariable("X", inner)

	cp := v.ShallowCopy()
	assert.Same(t, inner, cp.Value())

	cp.Set(NewConstant(3))
	assert.Same(t, inner, v.Value())

	deep := v.DeepCopy().(*Variable)
	assert.NotSame(t, inner, deep.Value())
	assert.True(t, Equal(inner, deep.Value()))

	prefixed := v.ShallowCopy("plan")
	assert.Equal(t, Path("plan/X"), prefixed.Path())
}

func TestVariable_Relocate(t *testing.T) {
	target := NewVariable("R")
	m := NewRelocateVariable(target)
	require.True(t, m.Mutex())

	m.Set(NewConstant(42))
	assert.False(t, target.Bound())

	got := m.Relocate()
	assert.Same(t, target, got)
	assert.Equal(t, 42.0, target.Raw())

	cp := m.ShallowCopy()
	assert.Same(t, target, cp.Target())
}

func TestResolve_FollowsChains(t *testing.T) {
	a := NewVariable("A")
	b := BoundVariable("B", a)
	a.Set(NewConstant("x"))

	assert.Equal(t, "x", b.Raw())
	assert.Equal(t, "x", Resolve(b).Raw())
}

func TestCompare_OrdersByKindThenValue(t *testing.T) {
	assert.Negative(t, Compare(NewConstant(1), NewConstant(2)))
	assert.Negative(t, Compare(NewConstant(1), NewVariable("X")))
	assert.Negative(t, Compare(NewVariable("X"), From("a")))
	assert.Positive(t, Compare(From("b"), From("a")))
	assert.Zero(t, Compare(List(NewConstant(1)), List(NewConstant(1))))
}

func TestVariableSet(t *testing.T) {
	s := NewVariableSet(NewVariable("B"), NewVariable("A"))
	assert.False(t, s.Add(NewVariable("A")))
	assert.Equal(t, 2, s.Len())

	sorted := s.Sorted()
	assert.Equal(t, Path("A"), sorted[0].Path())
}

func TestLiteral_BindResolvesBoundVariables(t *testing.T) {
	x := BoundVariable("X", NewConstant(3))
	y := NewVariable("Y")
	l := NewLiteral("pos", false, []Term{x, y}, nil)

	bound := l.Bind()
	assert.Equal(t, "pos(3, Y)", bound.String())
	assert.False(t, bound.Ground())
}

func TestVariable_UpdateIsAtomicOnMutex(t *testing.T) {
	v := NewMutexVariable("Sum").Set(NewConstant(0))
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				v.Update(func(cur Term) Term {
					n, _ := cur.(*Constant).Number()
					return NewConstant(n + 1)
				})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 800.0, v.Raw())
}
