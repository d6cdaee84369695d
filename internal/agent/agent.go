// Package agent runs the reasoning cycle of a BDI agent: it matches
// triggers against plans, selects and instantiates the best candidate and
// folds its body, backtracking through the remaining candidates on failure.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/Harshitk-cp/bdi/internal/unify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxDepth bounds nested immediate goals and rule calls.
const maxDepth = 512

type planKey struct {
	typ     trigger.Type
	functor term.Path
	negated bool
}

// Agent is one BDI agent. Cycle must not be called concurrently with
// itself; Inject and the read accessors are safe from any goroutine.
type Agent struct {
	id     string
	cfg    Configuration
	logger *zap.Logger

	arena *belief.Arena
	view  *belief.View

	plans map[planKey][]*Plan
	rules map[term.Path][]*Rule

	mu    sync.Mutex
	inbox []trigger.Trigger

	cycles atomic.Uint64
}

// New validates cfg and builds an agent with its initial beliefs. The
// initial beliefs produce triggers for the first cycle.
func New(id string, cfg Configuration) (*Agent, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		id:     id,
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("agent_id", id)),
		plans:  make(map[planKey][]*Plan),
		rules:  make(map[term.Path][]*Rule),
	}
	a.arena = belief.NewArena(cfg.Storage, a.logger)
	a.view = a.arena.NewView(id)

	for _, p := range cfg.Plans {
		k := planKey{typ: p.Trigger.Canonical(), functor: p.Head.Functor(), negated: p.Head.Negated()}
		a.plans[k] = append(a.plans[k], p)
	}
	for _, r := range cfg.Rules {
		a.rules[r.Head.Functor()] = append(a.rules[r.Head.Functor()], r)
	}
	for _, b := range cfg.Beliefs {
		a.view.Add(b)
	}
	return a, nil
}

func (a *Agent) ID() string                     { return a.id }
func (a *Agent) Beliefs() *belief.View          { return a.view }
func (a *Agent) Unifier() unify.Unifier         { return a.cfg.Unifier }
func (a *Agent) Fuzzy() fuzzy.Defuzzifier       { return a.cfg.Fuzzy }
func (a *Agent) Actions() *execution.Registry   { return a.cfg.Actions }
func (a *Agent) Logger() *zap.Logger            { return a.logger }
func (a *Agent) Arena() *belief.Arena           { return a.arena }
func (a *Agent) Cycles() uint64                 { return a.cycles.Load() }
func (a *Agent) Configuration() Configuration   { return a.cfg }
func (a *Agent) Aggregation() fuzzy.Aggregation { return a.cfg.Aggregation }

// Inject queues a trigger for the next cycle. The queued literal is
// detached from the caller's variables.
func (a *Agent) Inject(t trigger.Type, l *term.Literal) {
	tr := trigger.New(t, l.Detach())
	a.mu.Lock()
	a.inbox = append(a.inbox, tr)
	a.mu.Unlock()
}

// Pending returns the number of injected triggers not yet perceived.
func (a *Agent) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inbox)
}

func (a *Agent) drainInbox() []trigger.Trigger {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.inbox
	a.inbox = nil
	return out
}

// Plans returns the counters of every plan in declaration order.
func (a *Agent) Plans() []PlanStatistic {
	out := make([]PlanStatistic, len(a.cfg.Plans))
	for i, p := range a.cfg.Plans {
		out[i] = p.Statistic()
	}
	return out
}

// Close detaches the agent's belief view.
func (a *Agent) Close() {
	a.view.Detach()
}

// Cycle runs one reasoning cycle: perceive, then match, select, instantiate,
// execute and settle every pending trigger. Triggers are handled
// concurrently. Plan failures never surface as errors; only context
// cancellation does.
func (a *Agent) Cycle(ctx context.Context) error {
	n := a.cycles.Add(1) - 1
	start := time.Now()

	for _, p := range a.cfg.Perceivers {
		if err := p.Perceive(ctx, a); err != nil {
			a.logger.Warn("perceiver failed", zap.Error(err))
		}
	}
	if reclaimed := a.view.Update(); reclaimed > 0 {
		a.logger.Debug("reclaimed trigger queues", zap.Int("count", reclaimed))
	}

	var triggers []trigger.Trigger
	if n == 0 && a.cfg.InitialGoal != nil {
		triggers = append(triggers, trigger.New(trigger.AddGoal, a.cfg.InitialGoal))
	}
	triggers = append(triggers, a.view.Trigger()...)
	triggers = append(triggers, a.drainInbox()...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.TriggerWorkers)
	for _, t := range triggers {
		g.Go(func() error {
			a.handle(gctx, t)
			return gctx.Err()
		})
	}
	err := g.Wait()

	a.logger.Debug("cycle finished",
		zap.Uint64("cycle", n),
		zap.Int("triggers", len(triggers)),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

// Achieve implements execution.Agent.
func (a *Agent) Achieve(ctx context.Context, goal *term.Literal, immediate bool) (fuzzy.Value, error) {
	if !immediate {
		a.Inject(trigger.AddGoal, goal)
		return fuzzy.True(), nil
	}
	ctx, err := deeper(ctx)
	if err != nil {
		return fuzzy.False(), err
	}
	return a.handle(ctx, trigger.New(trigger.AddGoal, goal)), nil
}

type candidate struct {
	plan  *Plan
	vars  term.VariableSet
	score float64
	index int
}

// handle runs MATCH to SETTLE for one trigger and returns the graded result.
func (a *Agent) handle(ctx context.Context, t trigger.Trigger) fuzzy.Value {
	candidates := a.match(ctx, t)
	if len(candidates) == 0 {
		a.logger.Debug("no plan for trigger", zap.String("trigger", t.String()))
		return fuzzy.False()
	}

	// SELECT: best score first, declaration order on ties
	slices.SortStableFunc(candidates, func(x, y candidate) int {
		switch {
		case x.score > y.score:
			return -1
		case x.score < y.score:
			return 1
		}
		return x.index - y.index
	})

	for _, c := range candidates {
		if ctx.Err() != nil {
			return fuzzy.False()
		}
		v, ok, rejected := a.instantiate(ctx, c)
		if rejected {
			continue
		}
		if ok {
			return v
		}
	}
	a.logger.Debug("plans exhausted", zap.String("trigger", t.String()), zap.Int("candidates", len(candidates)))
	return fuzzy.False()
}

// match unifies the trigger literal with the heads of all plans indexed for
// the trigger. Every head variable must be covered by the bindings.
func (a *Agent) match(ctx context.Context, t trigger.Trigger) []candidate {
	l := t.Literal()
	plans := a.plans[planKey{typ: t.Type().Canonical(), functor: l.Functor(), negated: l.Negated()}]
	if len(plans) == 0 {
		return nil
	}

	found := make([]*candidate, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vars, ok := a.cfg.Unifier.Unify(l, p.Head)
			if !ok || !unify.Covers(vars, l, p.Head) {
				return nil
			}
			found[i] = &candidate{plan: p, vars: vars, score: p.Score(a.cfg.Aggregation, a), index: i}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}

	out := make([]candidate, 0, len(found))
	for _, c := range found {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// instantiate builds the plan context and folds the body. It returns the
// graded result, whether the plan succeeded and whether a false condition
// rejected the plan, which does not count as a run.
func (a *Agent) instantiate(ctx context.Context, c candidate) (fuzzy.Value, bool, bool) {
	p := c.plan
	vars := term.NewVariableSet()
	for _, v := range c.vars.Sorted() {
		vars.Add(v)
	}
	a.buildVariables(vars, p)
	for _, v := range p.Variables() {
		vars.Add(v.ShallowCopy())
	}
	ec := execution.NewContext(a, p, vars)

	if p.Condition != nil {
		holds, err := execution.EvaluateBool(ec, p.Condition)
		if err != nil {
			a.logger.Warn("plan condition failed", zap.String("plan", p.Name()), zap.Error(err))
			return fuzzy.False(), false, true
		}
		if !holds {
			return fuzzy.False(), false, true
		}
	}

	p.start()
	r, err := execution.Run(ctx, ec, p.Body, p.Annotations.Parallel)
	if err != nil {
		p.finish(false)
		var execErr *execution.Error
		if errors.As(err, &execErr) {
			a.logger.Warn("plan instantiation aborted", zap.String("plan", p.Name()), zap.Error(err))
		}
		if p.Annotations.Atomic {
			return fuzzy.True(), true, false
		}
		return fuzzy.False(), false, false
	}
	p.finish(r.Success)

	value := fuzzy.From(r.Value.Degree * p.weight())
	if p.Annotations.Atomic {
		return fuzzy.True(), true, false
	}
	return value, r.Success, false
}

func (a *Agent) buildVariables(vars term.VariableSet, instance execution.Instance) {
	if a.cfg.VariableBuilder == nil {
		return
	}
	for _, v := range a.cfg.VariableBuilder.Variables(a, instance) {
		vars.Add(v)
	}
}

// CallRule implements execution.Agent. The call literal is unified with
// every rule head of the same functor; the alternatives of a matching rule
// are tried in order and the first success writes the bindings of the
// rule head back into the caller's variables.
func (a *Agent) CallRule(ctx context.Context, call *term.Literal, caller *execution.Context) (fuzzy.Value, error) {
	ctx, err := deeper(ctx)
	if err != nil {
		return fuzzy.False(), err
	}

	for _, r := range a.rules[call.Functor()] {
		unified, ok := a.cfg.Unifier.Unify(call, r.Head)
		if !ok {
			continue
		}
		for _, alt := range r.Alternatives {
			rc, outputs := a.ruleContext(r, alt, call, unified)
			res, err := execution.Run(ctx, rc, alt, false)
			if err != nil {
				return fuzzy.False(), err
			}
			if !res.Success {
				continue
			}
			a.bindBack(r, rc, unified, outputs, caller)
			return fuzzy.True(), nil
		}
	}
	a.logger.Debug("no rule succeeded", zap.String("call", call.String()))
	return fuzzy.False(), nil
}

// ruleContext instantiates one alternative. Head variables unified with an
// unbound caller variable start unbound; outputs maps them to the caller's
// variable.
func (a *Agent) ruleContext(r *Rule, body []execution.Step, call *term.Literal, unified term.VariableSet) (*execution.Context, map[term.Path]*term.Variable) {
	vars := term.NewVariableSet()
	outputs := make(map[term.Path]*term.Variable)

	head := make(map[term.Path]bool)
	for _, v := range r.Head.AllVariables() {
		head[v.Path()] = true
	}
	// a caller variable that met the head variable of the same path
	for _, w := range call.AllVariables() {
		if _, ok := unified.Get(w.Path()); !ok && !w.Bound() && head[w.Path()] {
			outputs[w.Path()] = w
		}
	}

	for _, v := range unified.Sorted() {
		if !head[v.Path()] {
			continue
		}
		if w, ok := term.Resolve(v.Value()).(*term.Variable); ok {
			if !w.Anonymous() {
				outputs[v.Path()] = w
			}
			vars.Add(term.NewVariable(v.Path()))
			continue
		}
		vars.Add(v.ShallowCopy())
	}
	a.buildVariables(vars, r)
	for _, v := range r.Head.AllVariables() {
		vars.Add(v.ShallowCopy())
	}
	for _, v := range execution.Variables(body) {
		vars.Add(v.ShallowCopy())
	}
	return execution.NewContext(a, r, vars), outputs
}

func (a *Agent) bindBack(r *Rule, rc *execution.Context, unified term.VariableSet, outputs map[term.Path]*term.Variable, caller *execution.Context) {
	for path, w := range outputs {
		hv, err := rc.Variable(path)
		if err != nil || !hv.Bound() {
			continue
		}
		if cv, err := caller.Lookup(w); err == nil {
			cv.Set(term.Resolve(hv))
		}
	}

	head := make(map[term.Path]bool)
	for _, v := range r.Head.AllVariables() {
		head[v.Path()] = true
	}
	back := term.NewVariableSet()
	for _, v := range unified.Sorted() {
		if !head[v.Path()] {
			back.Add(v)
		}
	}
	caller.Bind(back)
}

type depthKey struct{}

// deeper increments the nesting depth carried by ctx.
func deeper(ctx context.Context) (context.Context, error) {
	d, _ := ctx.Value(depthKey{}).(int)
	if d >= maxDepth {
		return ctx, fmt.Errorf("%w: nesting deeper than %d", execution.ErrIllegalState, maxDepth)
	}
	return context.WithValue(ctx, depthKey{}, d+1), nil
}
