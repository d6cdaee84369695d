package fuzzy

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Step is one unit of a fold. It returns the values it produced.
type Step func(ctx context.Context) ([]Value, error)

// Result is the outcome of a fold.
type Result struct {
	Values   []Value
	Value    Value
	Success  bool
	Executed int
}

// Sequential runs steps in order and stops after the first step whose
// values defuzzify to failure. A step error aborts the fold.
func Sequential(ctx context.Context, d Defuzzifier, steps []Step) (Result, error) {
	var r Result
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		values, err := step(ctx)
		r.Executed++
		if err != nil {
			return r, err
		}
		r.Values = append(r.Values, values...)
		if !d.Success(d.Apply(values)) {
			break
		}
	}
	r.Value = d.Apply(r.Values)
	r.Success = d.Success(r.Value)
	return r, nil
}

// Parallel runs every step concurrently and defuzzifies the concatenation of
// their values once. Values keep the order of steps.
func Parallel(ctx context.Context, d Defuzzifier, steps []Step) (Result, error) {
	results := make([][]Value, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		g.Go(func() error {
			values, err := step(gctx)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	r := Result{Executed: len(steps)}
	if err := g.Wait(); err != nil {
		return r, err
	}
	r.Values = slices.Concat(results...)
	r.Value = d.Apply(r.Values)
	r.Success = d.Success(r.Value)
	return r, nil
}
