package execution

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"go.uber.org/zap"
)

// Builtins returns the actions every agent gets.
func Builtins() []Action {
	return []Action{
		{Name: "generic/print", Execute: printMessage},
		{Name: "generic/success", Execute: constant(fuzzy.True())},
		{Name: "generic/fail", Execute: constant(fuzzy.False())},
		{Name: "generic/fuzzy", MinimalArguments: 1, Execute: degree},
		{Name: "collection/list/create", Execute: listCreate},
		{Name: "collection/list/size", MinimalArguments: 1, Execute: listSize},
		{Name: "math/min", MinimalArguments: 1, Execute: extreme(math.Min)},
		{Name: "math/max", MinimalArguments: 1, Execute: extreme(math.Max)},
	}
}

func printMessage(_ context.Context, _ bool, c *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.Raw().(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = a.String()
	}
	c.agent.Logger().Info("agent print",
		zap.String("agent_id", c.agent.ID()),
		zap.String("message", strings.Join(parts, " ")),
	)
	return nil, []fuzzy.Value{fuzzy.True()}, nil
}

func constant(v fuzzy.Value) ActionFunc {
	return func(context.Context, bool, *Context, []term.Term) ([]term.Term, []fuzzy.Value, error) {
		return nil, []fuzzy.Value{v}, nil
	}
}

func degree(_ context.Context, _ bool, _ *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
	d, ok := number(args[0])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a number", ErrIllegalState, args[0])
	}
	return nil, []fuzzy.Value{fuzzy.From(d)}, nil
}

func listCreate(_ context.Context, _ bool, _ *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
	return []term.Term{term.List(args...)}, []fuzzy.Value{fuzzy.True()}, nil
}

func listSize(_ context.Context, _ bool, _ *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
	l, ok := items(args[0])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a list", ErrIllegalState, args[0])
	}
	return []term.Term{term.NewConstant(len(l))}, []fuzzy.Value{fuzzy.True()}, nil
}

func extreme(pick func(a, b float64) float64) ActionFunc {
	return func(_ context.Context, _ bool, _ *Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
		values := args
		if len(args) == 1 {
			if l, ok := items(args[0]); ok {
				values = l
			}
		}
		if len(values) == 0 {
			return nil, []fuzzy.Value{fuzzy.False()}, nil
		}
		m, ok := number(values[0])
		for _, v := range values[1:] {
			n, nok := number(v)
			ok = ok && nok
			m = pick(m, n)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: non numeric argument", ErrIllegalState)
		}
		return []term.Term{term.NewConstant(m)}, []fuzzy.Value{fuzzy.True()}, nil
	}
}
