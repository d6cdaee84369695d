// Package execution runs plan and rule bodies: the execution context, the
// body steps and expressions, and the registry of actions.
package execution

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/unify"
	"go.uber.org/zap"
)

// Agent is the view of the running agent that bodies execute against.
type Agent interface {
	ID() string
	Beliefs() *belief.View
	Unifier() unify.Unifier
	Fuzzy() fuzzy.Defuzzifier
	Actions() *Registry
	Logger() *zap.Logger
	// Achieve pursues goal. Immediate goals run to completion in place;
	// the others are queued for the next cycle and succeed at once.
	Achieve(ctx context.Context, goal *term.Literal, immediate bool) (fuzzy.Value, error)
	// CallRule runs the rule matching call and binds the caller's
	// variables in c on success.
	CallRule(ctx context.Context, call *term.Literal, c *Context) (fuzzy.Value, error)
}

// Instance is the plan or rule a context belongs to.
type Instance interface {
	Name() string
}

// Context carries the variables of one plan or rule instantiation.
type Context struct {
	agent    Agent
	instance Instance
	vars     term.VariableSet
}

func NewContext(agent Agent, instance Instance, vars term.VariableSet) *Context {
	if vars == nil {
		vars = term.NewVariableSet()
	}
	return &Context{agent: agent, instance: instance, vars: vars}
}

func (c *Context) Agent() Agent                { return c.agent }
func (c *Context) Instance() Instance          { return c.instance }
func (c *Context) Variables() term.VariableSet { return c.vars }

// Variable returns the context variable with path p.
func (c *Context) Variable(p term.Path) (*term.Variable, error) {
	v, ok := c.vars.Get(p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, p)
	}
	return v, nil
}

// Lookup resolves the context instance of v. Anonymous variables are
// returned unchanged.
func (c *Context) Lookup(v *term.Variable) (*term.Variable, error) {
	if v.Anonymous() {
		return v, nil
	}
	return c.Variable(v.Path())
}

// Bind writes vars into the context. Existing variables take the new value,
// unknown ones are added as shallow copies.
func (c *Context) Bind(vars term.VariableSet) {
	for _, v := range vars.Sorted() {
		if cur, ok := c.vars.Get(v.Path()); ok {
			cur.Set(v.Value())
			continue
		}
		c.vars.Add(v.ShallowCopy())
	}
}

// Resolve replaces the variables of t with their context values. Unbound
// variables are replaced by the context variable itself.
func (c *Context) Resolve(t term.Term) term.Term {
	return term.Substitute(t, func(v *term.Variable) term.Term {
		if v.Anonymous() {
			return nil
		}
		cv, ok := c.vars.Get(v.Path())
		if !ok {
			return nil
		}
		return term.Resolve(cv)
	})
}

// ResolveLiteral is Resolve for literals.
func (c *Context) ResolveLiteral(l *term.Literal) *term.Literal {
	return c.Resolve(l).(*term.Literal)
}

// Duplicate copies the context. Plain variables become shallow copies,
// mutex variables are shared with c.
func (c *Context) Duplicate() *Context {
	vars := make(term.VariableSet, len(c.vars))
	for p, v := range c.vars {
		if v.Mutex() {
			vars[p] = v
		} else {
			vars[p] = v.ShallowCopy()
		}
	}
	return &Context{agent: c.agent, instance: c.instance, vars: vars}
}

// fork prepares n branch contexts. Every mutex variable of c is replaced by
// one relocate variable that all branches share; relocate writes those back
// into c and must be called once after the branches finished.
func (c *Context) fork(n int) (branches []*Context, relocate func()) {
	var shared []*term.Variable
	base := &Context{agent: c.agent, instance: c.instance, vars: make(term.VariableSet, len(c.vars))}
	for p, v := range c.vars {
		if v.Mutex() {
			r := term.NewRelocateVariable(v)
			shared = append(shared, r)
			base.vars[p] = r
			continue
		}
		base.vars[p] = v
	}
	branches = make([]*Context, n)
	for i := range branches {
		branches[i] = base.Duplicate()
	}
	return branches, func() {
		for _, r := range shared {
			r.Relocate()
		}
	}
}

func (c *Context) String() string {
	name := ""
	if c.instance != nil {
		name = c.instance.Name()
	}
	return name + " " + c.vars.String()
}
