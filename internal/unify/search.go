package unify

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/bdi/internal/term"
	"golang.org/x/sync/errgroup"
)

// Source yields the stored literals for a functor path in store order.
type Source interface {
	Beliefs(functor term.Path) []*term.Literal
}

// Match is a stored literal together with the bindings that unify it with a
// query.
type Match struct {
	Literal   *term.Literal
	Variables term.VariableSet
}

// Search unifies query against every literal src holds for its functor and
// returns the matches in store order. With n >= 0 a match must bind exactly
// n variables. No match is an empty result, not an error.
func Search(ctx context.Context, u Unifier, src Source, query *term.Literal, n int) ([]Match, error) {
	var candidates []*term.Literal
	for _, l := range src.Beliefs(query.Functor()) {
		if l.Negated() != query.Negated() || l.EmptyValues() != query.EmptyValues() {
			continue
		}
		if l.EmptyAnnotations() != query.EmptyAnnotations() {
			continue
		}
		candidates = append(candidates, l)
	}

	found := make([]*Match, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var (
				vars term.VariableSet
				ok   bool
			)
			if n >= 0 {
				vars, ok = u.UnifyExpected(l, query, n)
			} else {
				vars, ok = u.Unify(l, query)
			}
			if ok {
				found[i] = &Match{Literal: l, Variables: vars}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(found))
	for _, m := range found {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// Guard decides whether a match is acceptable.
type Guard func(ctx context.Context, m Match) (bool, error)

// First returns the first match accepted by guard. Sequentially the matches
// are tried in order; in parallel all are tried concurrently and whichever
// accepted match finishes first wins.
func First(ctx context.Context, matches []Match, guard Guard, parallel bool) (Match, bool, error) {
	if guard == nil {
		guard = func(context.Context, Match) (bool, error) { return true, nil }
	}
	if !parallel {
		for _, m := range matches {
			ok, err := guard(ctx, m)
			if err != nil {
				return Match{}, false, err
			}
			if ok {
				return m, true, nil
			}
		}
		return Match{}, false, nil
	}

	var (
		once   sync.Once
		winner Match
		found  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range matches {
		g.Go(func() error {
			ok, err := guard(gctx, m)
			if err != nil {
				return err
			}
			if ok {
				once.Do(func() {
					winner, found = m, true
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Match{}, false, err
	}
	return winner, found, nil
}
