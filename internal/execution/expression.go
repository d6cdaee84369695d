package execution

import (
	"fmt"
	"math"
	"strings"

	"github.com/Harshitk-cp/bdi/internal/term"
)

// Expression is a side effect free computation over context variables.
type Expression interface {
	fmt.Stringer
	Variables() []*term.Variable
	expression()
}

// Value is a constant, variable or literal operand.
type Value struct {
	Term term.Term
}

type ArithmeticOp string

const (
	Add      ArithmeticOp = "+"
	Subtract ArithmeticOp = "-"
	Multiply ArithmeticOp = "*"
	Divide   ArithmeticOp = "/"
	Modulo   ArithmeticOp = "%"
	Power    ArithmeticOp = "**"
)

type Arithmetic struct {
	Op          ArithmeticOp
	Left, Right Expression
}

type RelationalOp string

const (
	Equal        RelationalOp = "=="
	NotEqual     RelationalOp = "!="
	Less         RelationalOp = "<"
	LessEqual    RelationalOp = "<="
	Greater      RelationalOp = ">"
	GreaterEqual RelationalOp = ">="
)

type Relational struct {
	Op          RelationalOp
	Left, Right Expression
}

type LogicalOp string

const (
	And LogicalOp = "&&"
	Or  LogicalOp = "||"
	Xor LogicalOp = "^"
)

type Logical struct {
	Op          LogicalOp
	Left, Right Expression
}

type Not struct {
	Expr Expression
}

func (Value) expression()      {}
func (Arithmetic) expression() {}
func (Relational) expression() {}
func (Logical) expression()    {}
func (Not) expression()        {}

func (v Value) Variables() []*term.Variable      { return termVariables(v.Term) }
func (a Arithmetic) Variables() []*term.Variable { return join(a.Left, a.Right) }
func (r Relational) Variables() []*term.Variable { return join(r.Left, r.Right) }
func (l Logical) Variables() []*term.Variable    { return join(l.Left, l.Right) }
func (n Not) Variables() []*term.Variable        { return n.Expr.Variables() }

func (v Value) String() string      { return v.Term.String() }
func (a Arithmetic) String() string { return binary(a.Left, string(a.Op), a.Right) }
func (r Relational) String() string { return binary(r.Left, string(r.Op), r.Right) }
func (l Logical) String() string    { return binary(l.Left, string(l.Op), l.Right) }
func (n Not) String() string        { return "~" + n.Expr.String() }

func binary(l Expression, op string, r Expression) string {
	return "(" + l.String() + " " + op + " " + r.String() + ")"
}

func join(es ...Expression) []*term.Variable {
	var out []*term.Variable
	for _, e := range es {
		out = append(out, e.Variables()...)
	}
	return out
}

func termVariables(t term.Term) []*term.Variable {
	switch x := t.(type) {
	case *term.Variable:
		if x.Anonymous() {
			return nil
		}
		return []*term.Variable{x}
	case *term.Literal:
		return x.AllVariables()
	case *term.Constant:
		items, ok := x.Items()
		if !ok {
			return nil
		}
		var out []*term.Variable
		for _, i := range items {
			out = append(out, termVariables(i)...)
		}
		return out
	}
	return nil
}

// Evaluate computes e in c.
func Evaluate(c *Context, e Expression) (term.Term, error) {
	switch x := e.(type) {
	case Value:
		if v, ok := x.Term.(*term.Variable); ok {
			cv, err := c.Lookup(v)
			if err != nil {
				return nil, err
			}
			r := term.Resolve(cv)
			if _, unbound := r.(*term.Variable); unbound {
				return nil, fmt.Errorf("%w: %s is unbound", ErrIllegalState, v)
			}
			return r, nil
		}
		return c.Resolve(x.Term), nil

	case Arithmetic:
		l, r, err := operands(c, x.Left, x.Right)
		if err != nil {
			return nil, err
		}
		return arithmetic(x.Op, l, r)

	case Relational:
		l, r, err := operands(c, x.Left, x.Right)
		if err != nil {
			return nil, err
		}
		b, err := relational(x.Op, l, r)
		if err != nil {
			return nil, err
		}
		return term.NewConstant(b), nil

	case Logical:
		l, err := EvaluateBool(c, x.Left)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case And:
			if !l {
				return term.NewConstant(false), nil
			}
		case Or:
			if l {
				return term.NewConstant(true), nil
			}
		}
		r, err := EvaluateBool(c, x.Right)
		if err != nil {
			return nil, err
		}
		if x.Op == Xor {
			return term.NewConstant(l != r), nil
		}
		return term.NewConstant(r), nil

	case Not:
		b, err := EvaluateBool(c, x.Expr)
		if err != nil {
			return nil, err
		}
		return term.NewConstant(!b), nil
	}
	return nil, fmt.Errorf("%w: unknown expression %T", ErrIllegalState, e)
}

// EvaluateBool evaluates e and requires a boolean result.
func EvaluateBool(c *Context, e Expression) (bool, error) {
	t, err := Evaluate(c, e)
	if err != nil {
		return false, err
	}
	b, ok := t.Raw().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is not boolean", ErrIllegalState, e)
	}
	return b, nil
}

func operands(c *Context, left, right Expression) (term.Term, term.Term, error) {
	l, err := Evaluate(c, left)
	if err != nil {
		return nil, nil, err
	}
	r, err := Evaluate(c, right)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func arithmetic(op ArithmeticOp, l, r term.Term) (term.Term, error) {
	if op == Add {
		if ls, ok := l.Raw().(string); ok {
			return term.NewConstant(ls + fmt.Sprint(raw(r))), nil
		}
		if li, ok := items(l); ok {
			if ri, ok := items(r); ok {
				return term.List(append(li, ri...)...), nil
			}
			return term.List(append(li, r)...), nil
		}
	}
	a, aok := number(l)
	b, bok := number(r)
	if !aok || !bok {
		return nil, fmt.Errorf("%w: %s %s %s needs numbers", ErrIllegalState, l, op, r)
	}
	var v float64
	switch op {
	case Add:
		v = a + b
	case Subtract:
		v = a - b
	case Multiply:
		v = a * b
	case Divide:
		v = a / b
	case Modulo:
		v = modulo(a, b)
	case Power:
		v = math.Pow(a, b)
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrIllegalState, op)
	}
	return term.NewConstant(v), nil
}

// modulo keeps the sign of the divisor.
func modulo(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func relational(op RelationalOp, l, r term.Term) (bool, error) {
	switch op {
	case Equal:
		return term.Equal(l, r), nil
	case NotEqual:
		return !term.Equal(l, r), nil
	}

	var c int
	if a, ok := number(l); ok {
		b, ok := number(r)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare %s and %s", ErrIllegalState, l, r)
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else if a, ok := l.Raw().(string); ok {
		b, ok := r.Raw().(string)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare %s and %s", ErrIllegalState, l, r)
		}
		c = strings.Compare(a, b)
	} else {
		return false, fmt.Errorf("%w: cannot order %s", ErrIllegalState, l)
	}

	switch op {
	case Less:
		return c < 0, nil
	case LessEqual:
		return c <= 0, nil
	case Greater:
		return c > 0, nil
	case GreaterEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrIllegalState, op)
}

func items(t term.Term) ([]term.Term, bool) {
	c, ok := t.(*term.Constant)
	if !ok {
		return nil, false
	}
	return c.Items()
}

func number(t term.Term) (float64, bool) {
	f, ok := t.Raw().(float64)
	return f, ok
}

func raw(t term.Term) any {
	if c, ok := t.(*term.Constant); ok {
		if s, ok := c.Raw().(string); ok {
			return s
		}
	}
	return t.String()
}
