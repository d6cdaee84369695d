package execution

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/unify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAgent struct {
	view     *belief.View
	registry *Registry
	goals    []string
	calls    atomic.Int32
}

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	a := &fakeAgent{view: belief.NewArena(nil, zap.NewNop()).NewView("agent")}

	actions := append(Builtins(),
		Action{Name: "test/count", Execute: func(context.Context, bool, *Context, []term.Term) ([]term.Term, []fuzzy.Value, error) {
			a.calls.Add(1)
			return nil, []fuzzy.Value{fuzzy.True()}, nil
		}},
		Action{Name: "test/countfail", Execute: func(context.Context, bool, *Context, []term.Term) ([]term.Term, []fuzzy.Value, error) {
			a.calls.Add(1)
			return nil, []fuzzy.Value{fuzzy.False()}, nil
		}},
		Action{Name: "test/pair", Execute: func(context.Context, bool, *Context, []term.Term) ([]term.Term, []fuzzy.Value, error) {
			return []term.Term{term.NewConstant(1)}, nil, nil
		}},
	)
	r, err := NewRegistry(actions...)
	require.NoError(t, err)
	a.registry = r
	return a
}

func (a *fakeAgent) ID() string               { return "fake" }
func (a *fakeAgent) Beliefs() *belief.View    { return a.view }
func (a *fakeAgent) Unifier() unify.Unifier   { return unify.New() }
func (a *fakeAgent) Fuzzy() fuzzy.Defuzzifier { return fuzzy.NewConjunction(0) }
func (a *fakeAgent) Actions() *Registry       { return a.registry }
func (a *fakeAgent) Logger() *zap.Logger      { return zap.NewNop() }

func (a *fakeAgent) Achieve(_ context.Context, goal *term.Literal, immediate bool) (fuzzy.Value, error) {
	prefix := "!"
	if immediate {
		prefix = "!!"
	}
	a.goals = append(a.goals, prefix+goal.String())
	return fuzzy.True(), nil
}

func (a *fakeAgent) CallRule(_ context.Context, call *term.Literal, c *Context) (fuzzy.Value, error) {
	return fuzzy.Of(call.Functor() == "known"), nil
}

type named string

func (n named) Name() string { return string(n) }

func newContext(a Agent, vars ...*term.Variable) *Context {
	return NewContext(a, named("test"), term.NewVariableSet(vars...))
}

func val(v any) Value { return Value{Term: term.Of(v)} }

func ref(v *term.Variable) Value { return Value{Term: v} }

func TestRun_SequentialStopsAtFailure(t *testing.T) {
	a := newFakeAgent(t)
	body := []Step{
		ActionStep{Name: "test/count"},
		ActionStep{Name: "test/countfail"},
		ActionStep{Name: "test/count"},
	}

	r, err := Run(context.Background(), newContext(a), body, false)
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, 2, r.Executed)
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestRun_ParallelRunsEveryStep(t *testing.T) {
	a := newFakeAgent(t)
	body := []Step{
		ActionStep{Name: "test/count"},
		ActionStep{Name: "test/countfail"},
		ActionStep{Name: "test/count"},
	}

	r, err := Run(context.Background(), newContext(a), body, true)
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, int32(3), a.calls.Load())
}

func TestRun_ParallelRelocatesMutexVariables(t *testing.T) {
	a := newFakeAgent(t)
	sum := term.NewMutexVariable("Sum").Set(term.NewConstant(0))
	local := term.NewVariable("Local")
	c := newContext(a, sum, local)

	step := AssignStep{Target: term.NewVariable("Sum"), Op: AssignAdd, Value: val(1)}
	body := []Step{step, step, step, AssignStep{Target: term.NewVariable("Local"), Op: Assign, Value: val(7)}}

	r, err := Run(context.Background(), c, body, true)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 3.0, sum.Raw())
	assert.False(t, local.Bound(), "plain variables stay branch local")
}

func TestExecute_ActionErrors(t *testing.T) {
	a := newFakeAgent(t)
	c := newContext(a, term.NewVariable("A"), term.NewVariable("B"))

	tests := []struct {
		name string
		step Step
		want error
	}{
		{"unknown action", ActionStep{Name: "nope"}, ErrUnknownAction},
		{"argument count", ActionStep{Name: "math/min"}, ErrArgumentCount},
		{"missing return", ActionStep{Name: "test/pair", Returns: []*term.Variable{term.NewVariable("A"), term.NewVariable("B")}}, ErrMissingReturn},
		{"missing variable", AssignStep{Target: term.NewVariable("Z"), Op: Assign, Value: val(1)}, ErrVariableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), false, c, tt.step)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var execErr *Error
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, "test", execErr.Instance)
		})
	}
}

func TestExecute_ActionReturnsBind(t *testing.T) {
	a := newFakeAgent(t)
	m := term.NewVariable("M")
	c := newContext(a, m)

	_, err := Execute(context.Background(), false, c, ActionStep{
		Name:    "math/max",
		Args:    []Expression{val(3), val(9), val(4)},
		Returns: []*term.Variable{term.NewVariable("M")},
	})
	require.NoError(t, err)
	assert.Equal(t, 9.0, m.Raw())
}

func TestExecute_BeliefSteps(t *testing.T) {
	a := newFakeAgent(t)
	x := term.BoundVariable("X", term.NewConstant(1))
	c := newContext(a, x)
	ctx := context.Background()

	_, err := Execute(ctx, false, c, BeliefStep{Op: BeliefAdd, Literal: term.NewLiteral("counter", false, []term.Term{term.NewVariable("X")}, nil)})
	require.NoError(t, err)
	assert.True(t, a.view.Contains(term.From("counter", 1)))

	_, err = Execute(ctx, false, c, BeliefStep{Op: BeliefUpdate, Literal: term.From("counter", 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, a.view.Size())
	assert.True(t, a.view.Contains(term.From("counter", 2)))

	values, err := Execute(ctx, false, c, BeliefStep{Op: BeliefRemove, Literal: term.NewLiteral("counter", false, []term.Term{term.NewVariable("_")}, nil)})
	require.NoError(t, err)
	assert.Equal(t, []fuzzy.Value{fuzzy.True()}, values)
	assert.Equal(t, 0, a.view.Size())

	_, err = Execute(ctx, false, c, BeliefStep{Op: BeliefAdd, Literal: term.NewLiteral("counter", false, []term.Term{term.NewVariable("Y")}, nil)})
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestExecute_TestStepWithGuard(t *testing.T) {
	a := newFakeAgent(t)
	for _, n := range []int{1, 5, 8} {
		a.view.Add(term.From("edge", 0, n))
	}
	to := term.NewVariable("To")
	c := newContext(a, to)
	query := term.NewLiteral("edge", false, []term.Term{term.NewConstant(0), term.NewVariable("To")}, nil)

	values, err := Execute(context.Background(), false, c, TestStep{
		Query: query,
		Guard: Relational{Op: Greater, Left: ref(term.NewVariable("To")), Right: val(4)},
	})
	require.NoError(t, err)
	assert.Equal(t, []fuzzy.Value{fuzzy.True()}, values)
	assert.Equal(t, 5.0, to.Raw())

	miss := newContext(a, term.NewVariable("To"))
	values, err = Execute(context.Background(), false, miss, TestStep{
		Query: query,
		Guard: Relational{Op: Greater, Left: ref(term.NewVariable("To")), Right: val(100)},
	})
	require.NoError(t, err)
	assert.Equal(t, []fuzzy.Value{fuzzy.False()}, values)
}

func TestExecute_Lambda(t *testing.T) {
	a := newFakeAgent(t)
	list := term.BoundVariable("L", term.List(term.NewConstant(1), term.NewConstant(2), term.NewConstant(3)))
	iter := term.NewVariable("I")

	t.Run("sequential", func(t *testing.T) {
		sum := term.BoundVariable("S", term.NewConstant(0))
		c := newContext(a, list.ShallowCopy(), sum)
		step := LambdaStep{
			Source:   ref(term.NewVariable("L")),
			Iterator: iter,
			Body:     []Step{AssignStep{Target: term.NewVariable("S"), Op: AssignAdd, Value: ref(iter)}},
			Return:   term.NewVariable("S"),
		}
		values, err := Execute(context.Background(), false, c, step)
		require.NoError(t, err)
		assert.Equal(t, []fuzzy.Value{fuzzy.True()}, values)
		assert.Equal(t, 6.0, sum.Raw())
	})

	t.Run("parallel", func(t *testing.T) {
		step := LambdaStep{
			Parallel: true,
			Source:   ref(term.NewVariable("L")),
			Iterator: iter,
			Body:     []Step{AssignStep{Target: term.NewVariable("S"), Op: AssignMultiply, Value: ref(iter)}},
			Return:   term.NewVariable("S"),
		}
		var sum *term.Variable
		for _, v := range step.Variables() {
			if v.Path() == "S" {
				sum = v
			}
		}
		require.NotNil(t, sum)
		require.True(t, sum.Mutex(), "parallel lambdas declare their return as mutex")
		sum.Set(term.NewConstant(1))

		c := newContext(a, list.ShallowCopy(), sum)
		values, err := Execute(context.Background(), false, c, step)
		require.NoError(t, err)
		assert.Equal(t, []fuzzy.Value{fuzzy.True()}, values)
		assert.Equal(t, 6.0, sum.Raw())
	})
}

func TestExecute_AssignmentsAndUnary(t *testing.T) {
	a := newFakeAgent(t)
	x := term.BoundVariable("X", term.NewConstant(10))
	c := newContext(a, x)
	ctx := context.Background()
	xv := term.NewVariable("X")

	steps := []Step{
		AssignStep{Target: xv, Op: AssignSubtract, Value: val(4)},
		AssignStep{Target: xv, Op: AssignPower, Value: val(2)},
		AssignStep{Target: xv, Op: AssignModulo, Value: val(7)},
		UnaryStep{Target: xv, Op: Increment},
		UnaryStep{Target: xv, Op: Increment},
		UnaryStep{Target: xv, Op: Decrement},
	}
	for _, s := range steps {
		_, err := Execute(ctx, false, c, s)
		require.NoError(t, err, s.String())
	}
	// ((10-4)^2) % 7 = 1, then +1
	assert.Equal(t, 2.0, x.Raw())

	x.Set(term.NewConstant("text"))
	_, err := Execute(ctx, false, c, UnaryStep{Target: xv, Op: Increment})
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestExecute_Deconstruct(t *testing.T) {
	a := newFakeAgent(t)
	f, v := term.NewVariable("F"), term.NewVariable("V")
	src := term.BoundVariable("L", term.From("move", 1, 2))
	c := newContext(a, f, v, src)

	_, err := Execute(context.Background(), false, c, DeconstructStep{
		Functor: term.NewVariable("F"),
		Values:  term.NewVariable("V"),
		Source:  ref(term.NewVariable("L")),
	})
	require.NoError(t, err)
	assert.Equal(t, "move", f.Raw())
	assert.Equal(t, "[1, 2]", v.Value().String())
}

func TestExecute_AchieveAndRules(t *testing.T) {
	a := newFakeAgent(t)
	x := term.BoundVariable("X", term.NewConstant(3))
	name := term.BoundVariable("R", term.NewConstant("known"))
	c := newContext(a, x, name)
	ctx := context.Background()

	_, err := Execute(ctx, false, c, AchieveStep{Literal: term.NewLiteral("go", false, []term.Term{term.NewVariable("X")}, nil)})
	require.NoError(t, err)
	_, err = Execute(ctx, false, c, AchieveStep{Literal: term.From("now"), Immediate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"!go(3)", "!!now"}, a.goals)

	values, err := Execute(ctx, false, c, RuleVariableStep{Name: term.NewVariable("R"), Args: []term.Term{term.NewVariable("X")}})
	require.NoError(t, err)
	assert.Equal(t, []fuzzy.Value{fuzzy.True()}, values)

	values, err = Execute(ctx, false, c, RuleStep{Call: term.From("unknown")})
	require.NoError(t, err)
	assert.Equal(t, []fuzzy.Value{fuzzy.False()}, values)
}

func TestExecute_ExpressionStep(t *testing.T) {
	a := newFakeAgent(t)
	c := newContext(a, term.BoundVariable("X", term.NewConstant(4)))
	x := ref(term.NewVariable("X"))

	tests := []struct {
		name string
		expr Expression
		want bool
	}{
		{"relational", Relational{Op: LessEqual, Left: x, Right: val(4)}, true},
		{"arithmetic", Relational{Op: Equal, Left: Arithmetic{Op: Multiply, Left: x, Right: val(2)}, Right: val(8)}, true},
		{"and short circuit", Logical{Op: And, Left: val(false), Right: ref(term.NewVariable("Missing"))}, false},
		{"or", Logical{Op: Or, Left: val(false), Right: val(true)}, true},
		{"xor", Logical{Op: Xor, Left: val(true), Right: val(true)}, false},
		{"not", Not{Expr: Relational{Op: NotEqual, Left: x, Right: val(4)}}, true},
		{"strings", Relational{Op: Less, Left: val("a"), Right: val("b")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := Execute(context.Background(), false, c, ExpressionStep{Expr: tt.expr})
			require.NoError(t, err)
			assert.Equal(t, []fuzzy.Value{fuzzy.Of(tt.want)}, values)
		})
	}

	_, err := Execute(context.Background(), false, c, ExpressionStep{Expr: val(3)})
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestModulo_KeepsDivisorSign(t *testing.T) {
	assert.Equal(t, 2.0, modulo(-1, 3))
	assert.Equal(t, 1.0, modulo(7, 3))
	assert.Equal(t, -1.0, modulo(2, -3))
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Builtins()...)
	require.NoError(t, err)

	err = r.Register(Action{Name: "generic/print", Execute: printMessage})
	assert.Error(t, err)

	_, ok := r.Get("generic/print")
	assert.True(t, ok)
	assert.Contains(t, r.Names(), term.Path("math/max"))

	a := newFakeAgent(t)
	assert.Equal(t, 0.0, Score(ActionStep{Name: "generic/print"}, a))
	a.registry.SetScorer(ScorerFunc(func(term.Path, Agent) float64 { return 0.25 }))
	assert.Equal(t, 0.25, Score(ActionStep{Name: "generic/print"}, a))
	assert.Equal(t, 0.5, Score(LambdaStep{Body: []Step{ActionStep{Name: "a"}, ActionStep{Name: "b"}}}, a))
}

func TestVariables_PreferMutexDeclarations(t *testing.T) {
	body := []Step{
		AssignStep{Target: term.NewVariable("R"), Op: Assign, Value: val(1)},
		LambdaStep{Parallel: true, Source: val([]any{1}), Iterator: term.NewVariable("I"), Return: term.NewVariable("R")},
	}
	vars := Variables(body)
	require.Len(t, vars, 1)
	assert.True(t, vars[0].Mutex())
}
