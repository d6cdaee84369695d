package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/unify"
	"go.uber.org/zap"
)

const defaultTriggerWorkers = 8

var ErrInvalidConfiguration = errors.New("invalid agent configuration")

// Bundle is a parsed agent program.
type Bundle struct {
	Beliefs     []*term.Literal
	Plans       []*Plan
	Rules       []*Rule
	InitialGoal *term.Literal
}

// VariableBuilder contributes default variables to every plan and rule
// instantiation.
type VariableBuilder interface {
	Variables(a *Agent, instance execution.Instance) []*term.Variable
}

type VariableBuilderFunc func(a *Agent, instance execution.Instance) []*term.Variable

func (f VariableBuilderFunc) Variables(a *Agent, instance execution.Instance) []*term.Variable {
	return f(a, instance)
}

// Perceiver updates the beliefs of an agent at the start of each cycle.
type Perceiver interface {
	Perceive(ctx context.Context, a *Agent) error
}

type PerceiverFunc func(ctx context.Context, a *Agent) error

func (f PerceiverFunc) Perceive(ctx context.Context, a *Agent) error {
	return f(ctx, a)
}

// Configuration is shared read-only by every cycle of an agent. Unset
// collaborators fall back to their defaults in New.
type Configuration struct {
	Bundle

	Unifier         unify.Unifier
	Fuzzy           fuzzy.Defuzzifier
	Aggregation     fuzzy.Aggregation
	VariableBuilder VariableBuilder
	Actions         *execution.Registry
	Storage         belief.StorageFactory
	Perceivers      []Perceiver
	TriggerWorkers  int
	Logger          *zap.Logger
}

func (c *Configuration) defaults() error {
	if c.Unifier == nil {
		c.Unifier = unify.New()
	}
	if c.Fuzzy == nil {
		c.Fuzzy = fuzzy.NewConjunction(0)
	}
	if c.Aggregation == nil {
		c.Aggregation = fuzzy.Sum
	}
	if c.Actions == nil {
		r, err := execution.NewRegistry(execution.Builtins()...)
		if err != nil {
			return err
		}
		c.Actions = r
	}
	if c.Storage == nil {
		c.Storage = belief.NewMemoryFactory()
	}
	if c.TriggerWorkers <= 0 {
		c.TriggerWorkers = defaultTriggerWorkers
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

func (c *Configuration) validate() error {
	for i, p := range c.Plans {
		if p == nil || p.Head == nil {
			return fmt.Errorf("%w: plan %d has no head", ErrInvalidConfiguration, i)
		}
		if p.Trigger.Symbol() == "" {
			return fmt.Errorf("%w: plan %s has no trigger type", ErrInvalidConfiguration, p.Head)
		}
		if err := c.validateBody(p.Name(), p.Body); err != nil {
			return err
		}
	}
	for i, r := range c.Rules {
		if r == nil || r.Head == nil {
			return fmt.Errorf("%w: rule %d has no head", ErrInvalidConfiguration, i)
		}
		if len(r.Alternatives) == 0 {
			return fmt.Errorf("%w: rule %s has no body", ErrInvalidConfiguration, r.Head)
		}
		for _, alt := range r.Alternatives {
			if err := c.validateBody(r.Name(), alt); err != nil {
				return err
			}
		}
	}
	for _, b := range c.Beliefs {
		if b == nil || !b.Ground() {
			return fmt.Errorf("%w: initial belief %v is not ground", ErrInvalidConfiguration, b)
		}
	}
	return nil
}

// validateBody checks that every action a body calls is registered.
func (c *Configuration) validateBody(owner string, body []execution.Step) error {
	for _, s := range body {
		switch x := s.(type) {
		case execution.ActionStep:
			if _, ok := c.Actions.Get(x.Name); !ok {
				return fmt.Errorf("%w: %s calls %w %s", ErrInvalidConfiguration, owner, execution.ErrUnknownAction, x.Name)
			}
		case execution.LambdaStep:
			if err := c.validateBody(owner, x.Body); err != nil {
				return err
			}
		}
	}
	return nil
}
