package execution

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/unify"
	"go.uber.org/zap"
)

// Run folds body in c: sequentially with short circuit, or in parallel on
// duplicated contexts. Mutex variables written by parallel branches are
// relocated into c once all branches finished.
func Run(ctx context.Context, c *Context, body []Step, parallel bool) (fuzzy.Result, error) {
	d := c.agent.Fuzzy()
	steps := make([]fuzzy.Step, len(body))

	if !parallel {
		for i, s := range body {
			steps[i] = func(ctx context.Context) ([]fuzzy.Value, error) {
				return Execute(ctx, false, c, s)
			}
		}
		return fuzzy.Sequential(ctx, d, steps)
	}

	branches, relocate := c.fork(len(body))
	for i, s := range body {
		steps[i] = func(ctx context.Context) ([]fuzzy.Value, error) {
			return Execute(ctx, true, branches[i], s)
		}
	}
	r, err := fuzzy.Parallel(ctx, d, steps)
	relocate()
	return r, err
}

// Execute runs one step in c.
func Execute(ctx context.Context, parallel bool, c *Context, s Step) ([]fuzzy.Value, error) {
	var (
		values []fuzzy.Value
		err    error
	)
	switch x := s.(type) {
	case ActionStep:
		values, err = executeAction(ctx, parallel, c, x)
	case AchieveStep:
		values, err = executeAchieve(ctx, c, x)
	case RuleStep:
		values, err = executeRule(ctx, c, c.ResolveLiteral(x.Call))
	case RuleVariableStep:
		values, err = executeRuleVariable(ctx, c, x)
	case BeliefStep:
		values, err = executeBelief(ctx, c, x)
	case TestStep:
		values, err = executeTest(ctx, c, x)
	case LambdaStep:
		values, err = executeLambda(ctx, c, x)
	case AssignStep:
		values, err = executeAssign(c, x)
	case DeconstructStep:
		values, err = executeDeconstruct(c, x)
	case UnaryStep:
		values, err = executeUnary(c, x)
	case ExpressionStep:
		var b bool
		b, err = EvaluateBool(c, x.Expr)
		values = []fuzzy.Value{fuzzy.Of(b)}
	default:
		err = fmt.Errorf("%w: unknown step %T", ErrIllegalState, s)
	}
	if err != nil {
		return nil, newError(c, s, err)
	}
	return values, nil
}

// Score rates a step for plan selection. Actions are rated by the
// registry's scorer, lambdas by their body, everything else scores 0.
func Score(s Step, a Agent) float64 {
	switch x := s.(type) {
	case ActionStep:
		return a.Actions().score(x.Name, a)
	case LambdaStep:
		var sum float64
		for _, b := range x.Body {
			sum += Score(b, a)
		}
		return sum
	}
	return 0
}

func executeAction(ctx context.Context, parallel bool, c *Context, s ActionStep) ([]fuzzy.Value, error) {
	action, ok := c.agent.Actions().Get(s.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, s.Name)
	}
	if len(s.Args) < action.MinimalArguments {
		return nil, fmt.Errorf("%w: %s needs %d, got %d", ErrArgumentCount, s.Name, action.MinimalArguments, len(s.Args))
	}
	args := make([]term.Term, len(s.Args))
	for i, a := range s.Args {
		t, err := argument(c, a)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}

	returns, values, err := action.Execute(ctx, parallel, c, args)
	if err != nil {
		return nil, err
	}
	if len(returns) < len(s.Returns) {
		return nil, fmt.Errorf("%w: %s returned %d of %d", ErrMissingReturn, s.Name, len(returns), len(s.Returns))
	}
	for i, r := range s.Returns {
		v, err := c.Lookup(r)
		if err != nil {
			return nil, err
		}
		if !v.Anonymous() {
			v.Set(returns[i])
		}
	}
	return values, nil
}

// argument evaluates an action argument. Unbound variables are handed to
// the action as variables.
func argument(c *Context, e Expression) (term.Term, error) {
	if v, ok := e.(Value); ok {
		return c.Resolve(v.Term), nil
	}
	return Evaluate(c, e)
}

func executeAchieve(ctx context.Context, c *Context, s AchieveStep) ([]fuzzy.Value, error) {
	v, err := c.agent.Achieve(ctx, c.ResolveLiteral(s.Literal), s.Immediate)
	if err != nil {
		return nil, err
	}
	return []fuzzy.Value{v}, nil
}

func executeRule(ctx context.Context, c *Context, call *term.Literal) ([]fuzzy.Value, error) {
	v, err := c.agent.CallRule(ctx, call, c)
	if err != nil {
		return nil, err
	}
	return []fuzzy.Value{v}, nil
}

func executeRuleVariable(ctx context.Context, c *Context, s RuleVariableStep) ([]fuzzy.Value, error) {
	v, err := c.Lookup(s.Name)
	if err != nil {
		return nil, err
	}
	var name term.Path
	switch x := term.Resolve(v).(type) {
	case *term.Constant:
		str, ok := x.Raw().(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s does not name a rule", ErrIllegalState, s.Name)
		}
		name = term.PathOf(str)
	case *term.Literal:
		name = x.Functor()
	default:
		return nil, fmt.Errorf("%w: %s is unbound", ErrIllegalState, s.Name)
	}
	call := term.NewLiteral(name, false, s.Args, nil)
	return executeRule(ctx, c, c.ResolveLiteral(call))
}

func executeBelief(ctx context.Context, c *Context, s BeliefStep) ([]fuzzy.Value, error) {
	view := c.agent.Beliefs()
	l := c.ResolveLiteral(s.Literal)

	switch s.Op {
	case BeliefAdd:
		if !l.Ground() {
			return nil, fmt.Errorf("%w: %s is not ground", ErrIllegalState, l)
		}
		view.Add(l)
		return []fuzzy.Value{fuzzy.True()}, nil

	case BeliefRemove:
		if l.Ground() {
			return []fuzzy.Value{fuzzy.Of(view.Remove(l))}, nil
		}
		matches, err := unify.Search(ctx, c.agent.Unifier(), view, l, -1)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			view.Remove(m.Literal)
		}
		return []fuzzy.Value{fuzzy.Of(len(matches) > 0)}, nil

	case BeliefUpdate:
		if !l.Ground() {
			return nil, fmt.Errorf("%w: %s is not ground", ErrIllegalState, l)
		}
		for _, old := range view.Beliefs(l.Functor()) {
			if old.Negated() == l.Negated() && old.Arity() == l.Arity() {
				view.Remove(old)
			}
		}
		view.Add(l)
		return []fuzzy.Value{fuzzy.True()}, nil
	}
	return nil, fmt.Errorf("%w: unknown belief operator %q", ErrIllegalState, s.Op)
}

func executeTest(ctx context.Context, c *Context, s TestStep) ([]fuzzy.Value, error) {
	query := c.ResolveLiteral(s.Query)
	n := 0
	for _, v := range query.AllVariables() {
		if !v.Bound() {
			n++
		}
	}
	matches, err := unify.Search(ctx, c.agent.Unifier(), c.agent.Beliefs(), query, n)
	if err != nil {
		return nil, err
	}

	var guard unify.Guard
	if s.Guard != nil {
		guard = func(_ context.Context, m unify.Match) (bool, error) {
			trial := c.Duplicate()
			trial.Bind(m.Variables)
			return EvaluateBool(trial, s.Guard)
		}
	}
	m, ok, err := unify.First(ctx, matches, guard, s.Parallel)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.agent.Logger().Debug("test goal failed", zap.String("query", query.String()))
		return []fuzzy.Value{fuzzy.False()}, nil
	}
	c.Bind(m.Variables)
	return []fuzzy.Value{fuzzy.True()}, nil
}

func executeLambda(ctx context.Context, c *Context, s LambdaStep) ([]fuzzy.Value, error) {
	src, err := Evaluate(c, s.Source)
	if err != nil {
		return nil, err
	}
	items, ok := items(src)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", ErrIllegalState, s.Source)
	}

	loop := func(ctx context.Context, lc *Context, item term.Term) (bool, error) {
		it, _ := lc.vars.Get(s.Iterator.Path())
		it.Set(item)
		r, err := Run(ctx, lc, s.Body, false)
		return r.Success, err
	}

	if !s.Parallel {
		lc := c.Duplicate()
		if s.Return != nil {
			if v, ok := c.vars.Get(s.Return.Path()); ok {
				lc.vars[v.Path()] = v
			}
		}
		lc.vars[s.Iterator.Path()] = term.NewVariable(s.Iterator.Path())
		for _, item := range items {
			ok, err := loop(ctx, lc, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []fuzzy.Value{fuzzy.False()}, nil
			}
		}
		return []fuzzy.Value{fuzzy.True()}, nil
	}

	branches, relocate := c.fork(len(items))
	steps := make([]fuzzy.Step, len(items))
	for i, item := range items {
		lc := branches[i]
		lc.vars[s.Iterator.Path()] = term.NewVariable(s.Iterator.Path())
		steps[i] = func(ctx context.Context) ([]fuzzy.Value, error) {
			ok, err := loop(ctx, lc, item)
			return []fuzzy.Value{fuzzy.Of(ok)}, err
		}
	}
	r, err := fuzzy.Parallel(ctx, c.agent.Fuzzy(), steps)
	relocate()
	if err != nil {
		return nil, err
	}
	return []fuzzy.Value{fuzzy.Of(r.Success)}, nil
}

func executeAssign(c *Context, s AssignStep) ([]fuzzy.Value, error) {
	target, err := c.Lookup(s.Target)
	if err != nil {
		return nil, err
	}
	value, err := Evaluate(c, s.Value)
	if err != nil {
		return nil, err
	}
	if s.Op == Assign {
		target.Set(value)
		return nil, nil
	}

	op, ok := assignOps[s.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown assignment %q", ErrIllegalState, s.Op)
	}
	var failure error
	target.Update(func(cur term.Term) term.Term {
		next, err := arithmetic(op, term.Resolve(cur), value)
		if err != nil {
			failure = err
			return cur
		}
		failure = nil
		return next
	})
	if failure != nil {
		return nil, failure
	}
	return nil, nil
}

var assignOps = map[AssignOp]ArithmeticOp{
	AssignAdd:      Add,
	AssignSubtract: Subtract,
	AssignMultiply: Multiply,
	AssignDivide:   Divide,
	AssignModulo:   Modulo,
	AssignPower:    Power,
}

func executeDeconstruct(c *Context, s DeconstructStep) ([]fuzzy.Value, error) {
	src, err := Evaluate(c, s.Source)
	if err != nil {
		return nil, err
	}
	l, ok := src.(*term.Literal)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a literal", ErrIllegalState, s.Source)
	}
	if s.Functor != nil && !s.Functor.Anonymous() {
		v, err := c.Lookup(s.Functor)
		if err != nil {
			return nil, err
		}
		v.Set(term.NewConstant(l.Functor().String()))
	}
	if s.Values != nil && !s.Values.Anonymous() {
		v, err := c.Lookup(s.Values)
		if err != nil {
			return nil, err
		}
		v.Set(term.List(l.Values()...))
	}
	return nil, nil
}

func executeUnary(c *Context, s UnaryStep) ([]fuzzy.Value, error) {
	target, err := c.Lookup(s.Target)
	if err != nil {
		return nil, err
	}
	delta := 1.0
	if s.Op == Decrement {
		delta = -1
	} else if s.Op != Increment {
		return nil, fmt.Errorf("%w: unknown unary operator %q", ErrIllegalState, s.Op)
	}
	var failure error
	target.Update(func(cur term.Term) term.Term {
		n, ok := number(term.Resolve(cur))
		if !ok {
			failure = fmt.Errorf("%w: %s is not a number", ErrIllegalState, s.Target)
			return cur
		}
		failure = nil
		return term.NewConstant(n + delta)
	})
	if failure != nil {
		return nil, failure
	}
	return nil, nil
}
