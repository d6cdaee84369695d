package agent

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
)

// State is the outcome of the last run of a plan.
type State uint32

const (
	StateSuccess State = iota
	StateFail
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateFail:
		return "FAIL"
	case StateRunning:
		return "RUNNING"
	default:
		return "SUCCESS"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Annotations modify how a plan is selected and executed.
type Annotations struct {
	// Atomic plans never report failure once their body started.
	Atomic bool
	// Parallel plans fold their body concurrently.
	Parallel bool
	// Score replaces the default plan score of 1.0 when set.
	Score *float64
	// Fuzzy is the weight of the plan, 1.0 when unset.
	Fuzzy float64
}

// Plan reacts to a trigger whose literal unifies with Head.
type Plan struct {
	Trigger     trigger.Type
	Head        *term.Literal
	Annotations Annotations
	// Condition must hold in the instantiated context, otherwise the plan is
	// skipped without counting a run.
	Condition execution.Expression
	Body      []execution.Step

	runs  atomic.Int64
	fails atomic.Int64
	state atomic.Uint32

	once      sync.Once
	variables []*term.Variable
}

// Name is the plan's trigger in textual form, e.g. "+!move(X)".
func (p *Plan) Name() string {
	return p.Trigger.Symbol() + p.Head.String()
}

func (p *Plan) String() string {
	return p.Name()
}

// Variables returns the variables of head, condition and body. The result
// is computed once and must not be modified.
func (p *Plan) Variables() []*term.Variable {
	p.once.Do(func() {
		steps := append([]execution.Step{execution.ExpressionStep{Expr: execution.Value{Term: p.Head}}}, p.Body...)
		if p.Condition != nil {
			steps = append(steps, execution.ExpressionStep{Expr: p.Condition})
		}
		p.variables = execution.Variables(steps)
	})
	return p.variables
}

// Score aggregates the body step scores and the score annotation.
func (p *Plan) Score(agg fuzzy.Aggregation, a execution.Agent) float64 {
	scores := make([]float64, 0, len(p.Body)+1)
	for _, s := range p.Body {
		scores = append(scores, execution.Score(s, a))
	}
	if p.Annotations.Score != nil {
		scores = append(scores, *p.Annotations.Score)
	} else {
		scores = append(scores, 1)
	}
	return agg(scores)
}

func (p *Plan) weight() float64 {
	if p.Annotations.Fuzzy <= 0 {
		return 1
	}
	return p.Annotations.Fuzzy
}

func (p *Plan) start() {
	p.runs.Add(1)
	p.state.Store(uint32(StateRunning))
}

func (p *Plan) finish(success bool) {
	if success {
		p.state.Store(uint32(StateSuccess))
		return
	}
	p.fails.Add(1)
	p.state.Store(uint32(StateFail))
}

// PlanStatistic is a snapshot of a plan's counters.
type PlanStatistic struct {
	Plan  string `json:"plan"`
	Runs  int64  `json:"runs"`
	Fails int64  `json:"fails"`
	State State  `json:"state"`
}

// Statistic returns the current counters.
func (p *Plan) Statistic() PlanStatistic {
	return PlanStatistic{
		Plan:  p.Name(),
		Runs:  p.runs.Load(),
		Fails: p.fails.Load(),
		State: State(p.state.Load()),
	}
}

// Rule is a named set of alternative bodies called with "$name(args)".
type Rule struct {
	Head         *term.Literal
	Alternatives [][]execution.Step
}

func (r *Rule) Name() string {
	return r.Head.String()
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s :- %d alternatives", r.Head, len(r.Alternatives))
}
