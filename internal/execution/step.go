package execution

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/bdi/internal/term"
)

// Step is one element of a plan or rule body. The set of steps is closed;
// Execute dispatches on the concrete type.
type Step interface {
	fmt.Stringer
	// Variables returns the variables the step refers to or declares.
	Variables() []*term.Variable
	step()
}

// ActionStep calls a registered action. Returned values are bound to
// Returns in order.
type ActionStep struct {
	Name    term.Path
	Args    []Expression
	Returns []*term.Variable
}

// AchieveStep pursues a goal: "!g" queues it, "!!g" runs it in place.
type AchieveStep struct {
	Literal   *term.Literal
	Immediate bool
}

// RuleStep calls a rule: "$r(args)".
type RuleStep struct {
	Call *term.Literal
}

// RuleVariableStep calls the rule whose name a variable holds: "$V(args)".
type RuleVariableStep struct {
	Name *term.Variable
	Args []term.Term
}

type BeliefOp string

const (
	BeliefAdd    BeliefOp = "+"
	BeliefRemove BeliefOp = "-"
	BeliefUpdate BeliefOp = "-+"
)

// BeliefStep changes the belief base: "+b", "-b" or "-+b".
type BeliefStep struct {
	Op      BeliefOp
	Literal *term.Literal
}

// TestStep queries the belief base: "?b". With a guard only matches for
// which the guard holds are accepted.
type TestStep struct {
	Query    *term.Literal
	Guard    Expression
	Parallel bool
}

// LambdaStep runs Body once per element of the list Source evaluates to.
type LambdaStep struct {
	Parallel bool
	Source   Expression
	Iterator *term.Variable
	Body     []Step
	Return   *term.Variable
}

type AssignOp string

const (
	Assign         AssignOp = "="
	AssignAdd      AssignOp = "+="
	AssignSubtract AssignOp = "-="
	AssignMultiply AssignOp = "*="
	AssignDivide   AssignOp = "/="
	AssignModulo   AssignOp = "%="
	AssignPower    AssignOp = "^="
)

// AssignStep writes an expression into a variable.
type AssignStep struct {
	Target *term.Variable
	Op     AssignOp
	Value  Expression
}

// DeconstructStep splits a literal: "[F|A] =.. l" binds the functor to F
// and the value list to A.
type DeconstructStep struct {
	Functor *term.Variable
	Values  *term.Variable
	Source  Expression
}

type UnaryOp string

const (
	Increment UnaryOp = "++"
	Decrement UnaryOp = "--"
)

type UnaryStep struct {
	Target *term.Variable
	Op     UnaryOp
}

// ExpressionStep is a boolean guard inside a body.
type ExpressionStep struct {
	Expr Expression
}

func (ActionStep) step()       {}
func (AchieveStep) step()      {}
func (RuleStep) step()         {}
func (RuleVariableStep) step() {}
func (BeliefStep) step()       {}
func (TestStep) step()         {}
func (LambdaStep) step()       {}
func (AssignStep) step()       {}
func (DeconstructStep) step()  {}
func (UnaryStep) step()        {}
func (ExpressionStep) step()   {}

func (s ActionStep) Variables() []*term.Variable {
	out := join(s.Args...)
	return append(out, s.Returns...)
}

func (s AchieveStep) Variables() []*term.Variable { return s.Literal.AllVariables() }
func (s RuleStep) Variables() []*term.Variable    { return s.Call.AllVariables() }

func (s RuleVariableStep) Variables() []*term.Variable {
	out := []*term.Variable{s.Name}
	for _, a := range s.Args {
		out = append(out, termVariables(a)...)
	}
	return out
}

func (s BeliefStep) Variables() []*term.Variable { return s.Literal.AllVariables() }

func (s TestStep) Variables() []*term.Variable {
	out := s.Query.AllVariables()
	if s.Guard != nil {
		out = append(out, s.Guard.Variables()...)
	}
	return out
}

// Variables of a lambda exclude the iterator, which lives in the loop
// contexts only. A parallel lambda declares its return variable as mutex.
func (s LambdaStep) Variables() []*term.Variable {
	out := s.Source.Variables()
	for _, v := range Variables(s.Body) {
		if v.Path() != s.Iterator.Path() {
			out = append(out, v)
		}
	}
	if s.Return != nil {
		if s.Parallel {
			out = append(out, term.NewMutexVariable(s.Return.Path()))
		} else {
			out = append(out, s.Return)
		}
	}
	return out
}

func (s AssignStep) Variables() []*term.Variable {
	return append([]*term.Variable{s.Target}, s.Value.Variables()...)
}

func (s DeconstructStep) Variables() []*term.Variable {
	out := s.Source.Variables()
	for _, v := range []*term.Variable{s.Functor, s.Values} {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (s UnaryStep) Variables() []*term.Variable      { return []*term.Variable{s.Target} }
func (s ExpressionStep) Variables() []*term.Variable { return s.Expr.Variables() }

// Variables collects the distinct variables of a body. Mutex declarations
// win over plain ones with the same path.
func Variables(body []Step) []*term.Variable {
	index := make(map[term.Path]int)
	var out []*term.Variable
	for _, s := range body {
		for _, v := range s.Variables() {
			if v == nil || v.Anonymous() {
				continue
			}
			if i, ok := index[v.Path()]; ok {
				if v.Mutex() && !out[i].Mutex() {
					out[i] = v
				}
				continue
			}
			index[v.Path()] = len(out)
			out = append(out, v)
		}
	}
	return out
}

func (s ActionStep) String() string {
	var sb strings.Builder
	if len(s.Returns) > 0 {
		names := make([]string, len(s.Returns))
		for i, r := range s.Returns {
			names[i] = r.String()
		}
		if len(names) == 1 {
			sb.WriteString(names[0])
		} else {
			sb.WriteString("[" + strings.Join(names, ", ") + "]")
		}
		sb.WriteString(" = ")
	}
	sb.WriteString(s.Name.String())
	sb.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (s AchieveStep) String() string {
	if s.Immediate {
		return "!!" + s.Literal.String()
	}
	return "!" + s.Literal.String()
}

func (s RuleStep) String() string { return "$" + s.Call.String() }

func (s RuleVariableStep) String() string {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	return "$" + s.Name.String() + "(" + strings.Join(args, ", ") + ")"
}

func (s BeliefStep) String() string { return string(s.Op) + s.Literal.String() }

func (s TestStep) String() string {
	out := "?" + s.Query.String()
	if s.Guard != nil {
		out += " << " + s.Guard.String()
	}
	if s.Parallel {
		out = "@" + out
	}
	return out
}

func (s LambdaStep) String() string {
	prefix := ""
	if s.Parallel {
		prefix = "@"
	}
	ret := ""
	if s.Return != nil {
		ret = " | " + s.Return.String()
	}
	body := make([]string, len(s.Body))
	for i, b := range s.Body {
		body[i] = b.String()
	}
	return fmt.Sprintf("%s(%s) -> %s%s : { %s }", prefix, s.Source, s.Iterator, ret, strings.Join(body, "; "))
}

func (s AssignStep) String() string {
	return s.Target.String() + " " + string(s.Op) + " " + s.Value.String()
}

func (s DeconstructStep) String() string {
	return fmt.Sprintf("[%s|%s] =.. %s", s.Functor, s.Values, s.Source)
}

func (s UnaryStep) String() string      { return s.Target.String() + string(s.Op) }
func (s ExpressionStep) String() string { return s.Expr.String() }
