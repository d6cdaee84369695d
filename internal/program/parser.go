package program

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
)

var ErrSyntax = errors.New("syntax error")

type parser struct {
	src  string
	toks []token
	pos  int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", src, err)
	}
	return &parser{src: src, toks: toks}, nil
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return t.kind == tkPunct && t.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, found %s", text, p.peek())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w in %q: %s", ErrSyntax, p.src, fmt.Sprintf(format, args...))
}

func (p *parser) end() error {
	if t := p.peek(); t.kind != tkEOF {
		return p.errorf("unexpected %s", t)
	}
	return nil
}

// startsLiteral reports whether the token at offset n opens a literal.
func (p *parser) startsLiteral(n int) bool {
	t := p.peekAt(n)
	return t.kind == tkIdent || t.kind == tkPunct && t.text == "~"
}

// constant decodes a number or string token with the datalog atom reader.
func constant(text string) (term.Term, error) {
	atom, err := parse.Atom("c(" + text + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: constant %s: %w", ErrSyntax, text, err)
	}
	if len(atom.Args) != 1 {
		return nil, fmt.Errorf("%w: constant %s", ErrSyntax, text)
	}
	c, ok := atom.Args[0].(ast.Constant)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a constant", ErrSyntax, text)
	}
	switch c.Type {
	case ast.NumberType:
		return term.NewConstant(float64(c.NumValue)), nil
	case ast.Float64Type:
		return term.NewConstant(math.Float64frombits(uint64(c.NumValue))), nil
	case ast.StringType, ast.NameType:
		return term.NewConstant(c.Symbol), nil
	}
	return nil, fmt.Errorf("%w: unsupported constant %s", ErrSyntax, text)
}

func (p *parser) term() (term.Term, error) {
	t := p.peek()
	switch {
	case t.kind == tkVar:
		p.next()
		return term.NewVariable(term.Path(t.text)), nil
	case t.kind == tkNumber || t.kind == tkString:
		p.next()
		return constant(t.text)
	case p.is("-") && p.peekAt(1).kind == tkNumber:
		p.next()
		return constant("-" + p.next().text)
	case p.is("["):
		return p.list()
	case t.kind == tkIdent && (t.text == "true" || t.text == "false") && !(p.peekAt(1).kind == tkPunct && p.peekAt(1).text == "("):
		p.next()
		return term.NewConstant(t.text == "true"), nil
	case p.startsLiteral(0):
		return p.literal()
	}
	return nil, p.errorf("expected a term, found %s", t)
}

func (p *parser) list() (term.Term, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	var items []term.Term
	if p.accept("]") {
		return term.List(), nil
	}
	for {
		it, err := p.term()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		if p.accept(",") {
			continue
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return term.List(items...), nil
	}
}

func (p *parser) literal() (*term.Literal, error) {
	negated := p.accept("~")
	t := p.next()
	if t.kind != tkIdent {
		return nil, p.errorf("expected a functor, found %s", t)
	}

	var values []term.Term
	if p.accept("(") && !p.accept(")") {
		for {
			v, err := p.term()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.accept(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}

	var annotations []*term.Literal
	if p.accept("[") && !p.accept("]") {
		for {
			a, err := p.literal()
			if err != nil {
				return nil, err
			}
			annotations = append(annotations, a)
			if p.accept(",") {
				continue
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			break
		}
	}
	return term.NewLiteral(term.PathOf(t.text), negated, values, annotations), nil
}

func (p *parser) expression() (execution.Expression, error) {
	return p.binary(0)
}

var levels = [][]string{
	{"||"},
	{"^"},
	{"&&"},
}

var logical = map[string]execution.LogicalOp{
	"||": execution.Or,
	"^":  execution.Xor,
	"&&": execution.And,
}

var relational = map[string]execution.RelationalOp{
	"==": execution.Equal,
	"!=": execution.NotEqual,
	"<":  execution.Less,
	"<=": execution.LessEqual,
	">":  execution.Greater,
	">=": execution.GreaterEqual,
}

var additive = map[string]execution.ArithmeticOp{
	"+": execution.Add,
	"-": execution.Subtract,
}

var multiplicative = map[string]execution.ArithmeticOp{
	"*": execution.Multiply,
	"/": execution.Divide,
	"%": execution.Modulo,
}

func (p *parser) binary(level int) (execution.Expression, error) {
	if level == len(levels) {
		return p.not()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.operator(levels[level])
		if !ok {
			return left, nil
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = execution.Logical{Op: logical[op], Left: left, Right: right}
	}
}

func (p *parser) operator(ops []string) (string, bool) {
	for _, op := range ops {
		if p.accept(op) {
			return op, true
		}
	}
	return "", false
}

func (p *parser) not() (execution.Expression, error) {
	if p.is("~") && !p.startsLiteral(1) {
		p.next()
		e, err := p.not()
		if err != nil {
			return nil, err
		}
		return execution.Not{Expr: e}, nil
	}
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if op, ok := relational[t.text]; ok && t.kind == tkPunct {
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		return execution.Relational{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) additive() (execution.Expression, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := additive[t.text]
		if !ok || t.kind != tkPunct {
			return left, nil
		}
		p.next()
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = execution.Arithmetic{Op: op, Left: left, Right: right}
	}
}

func (p *parser) multiplicative() (execution.Expression, error) {
	left, err := p.power()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := multiplicative[t.text]
		if !ok || t.kind != tkPunct {
			return left, nil
		}
		p.next()
		right, err := p.power()
		if err != nil {
			return nil, err
		}
		left = execution.Arithmetic{Op: op, Left: left, Right: right}
	}
}

func (p *parser) power() (execution.Expression, error) {
	base, err := p.unary()
	if err != nil {
		return nil, err
	}
	if !p.accept("**") {
		return base, nil
	}
	exp, err := p.power()
	if err != nil {
		return nil, err
	}
	return execution.Arithmetic{Op: execution.Power, Left: base, Right: exp}, nil
}

func (p *parser) unary() (execution.Expression, error) {
	if p.is("-") && p.peekAt(1).kind != tkNumber {
		p.next()
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return execution.Arithmetic{Op: execution.Subtract, Left: execution.Value{Term: term.NewConstant(0)}, Right: e}, nil
	}
	if p.accept("(") {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	return execution.Value{Term: t}, nil
}

var assignments = map[string]execution.AssignOp{
	"=":  execution.Assign,
	"+=": execution.AssignAdd,
	"-=": execution.AssignSubtract,
	"*=": execution.AssignMultiply,
	"/=": execution.AssignDivide,
	"%=": execution.AssignModulo,
	"^=": execution.AssignPower,
}

func (p *parser) step() (execution.Step, error) {
	switch {
	case p.accept("!!"):
		l, err := p.literal()
		return execution.AchieveStep{Literal: l, Immediate: true}, err
	case p.accept("!"):
		l, err := p.literal()
		return execution.AchieveStep{Literal: l}, err
	case p.accept("-+"):
		l, err := p.literal()
		return execution.BeliefStep{Op: execution.BeliefUpdate, Literal: l}, err
	case p.is("+") && p.startsLiteral(1):
		p.next()
		l, err := p.literal()
		return execution.BeliefStep{Op: execution.BeliefAdd, Literal: l}, err
	case p.is("-") && p.startsLiteral(1):
		p.next()
		l, err := p.literal()
		return execution.BeliefStep{Op: execution.BeliefRemove, Literal: l}, err
	case p.is("@") && p.peekAt(1).text == "?":
		p.next()
		p.next()
		return p.test(true)
	case p.accept("?"):
		return p.test(false)
	case p.accept("$"):
		return p.rule()
	case p.is("[") && p.peekAt(1).kind == tkVar:
		if s, ok, err := p.destructure(); ok || err != nil {
			return s, err
		}
	case p.peek().kind == tkVar:
		if s, ok, err := p.assignment(); ok || err != nil {
			return s, err
		}
	case p.peek().kind == tkIdent && p.peek().text != "true" && p.peek().text != "false":
		start := p.pos
		if s, err := p.action(nil); err == nil {
			return s, nil
		}
		p.pos = start
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	return execution.ExpressionStep{Expr: e}, nil
}

func (p *parser) test(parallel bool) (execution.Step, error) {
	q, err := p.literal()
	if err != nil {
		return nil, err
	}
	s := execution.TestStep{Query: q, Parallel: parallel}
	if p.accept("<<") {
		if s.Guard, err = p.expression(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) rule() (execution.Step, error) {
	if p.peek().kind != tkVar {
		l, err := p.literal()
		return execution.RuleStep{Call: l}, err
	}
	name := term.NewVariable(term.Path(p.next().text))
	var args []term.Term
	if p.accept("(") && !p.accept(")") {
		for {
			a, err := p.term()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.accept(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	return execution.RuleVariableStep{Name: name, Args: args}, nil
}

// destructure reads "[F|A] =.. expr" and "[A, B] = action(args)".
func (p *parser) destructure() (execution.Step, bool, error) {
	start := p.pos
	p.next()
	first := term.NewVariable(term.Path(p.next().text))
	if p.accept("|") {
		if p.peek().kind != tkVar {
			p.pos = start
			return nil, false, nil
		}
		second := term.NewVariable(term.Path(p.next().text))
		if err := p.expect("]"); err != nil {
			return nil, true, err
		}
		if err := p.expect("=.."); err != nil {
			return nil, true, err
		}
		src, err := p.expression()
		return execution.DeconstructStep{Functor: first, Values: second, Source: src}, true, err
	}

	returns := []*term.Variable{first}
	for p.accept(",") {
		if p.peek().kind != tkVar {
			p.pos = start
			return nil, false, nil
		}
		returns = append(returns, term.NewVariable(term.Path(p.next().text)))
	}
	if !p.accept("]") || !p.accept("=") {
		p.pos = start
		return nil, false, nil
	}
	s, err := p.action(returns)
	return s, true, err
}

func (p *parser) assignment() (execution.Step, bool, error) {
	start := p.pos
	target := term.NewVariable(term.Path(p.next().text))
	t := p.next()
	if t.kind != tkPunct {
		p.pos = start
		return nil, false, nil
	}
	switch t.text {
	case "++":
		return execution.UnaryStep{Target: target, Op: execution.Increment}, true, nil
	case "--":
		return execution.UnaryStep{Target: target, Op: execution.Decrement}, true, nil
	}
	op, ok := assignments[t.text]
	if !ok {
		p.pos = start
		return nil, false, nil
	}
	if op == execution.Assign && p.peek().kind == tkIdent && strings.Contains(p.peek().text, "/") {
		rhs := p.pos
		if s, err := p.action([]*term.Variable{target}); err == nil {
			return s, true, nil
		}
		p.pos = rhs
	}
	v, err := p.expression()
	return execution.AssignStep{Target: target, Op: op, Value: v}, true, err
}

// action reads "name(args)" up to the end of the input.
func (p *parser) action(returns []*term.Variable) (execution.Step, error) {
	t := p.next()
	if t.kind != tkIdent {
		return nil, p.errorf("expected an action, found %s", t)
	}
	s := execution.ActionStep{Name: term.PathOf(t.text), Returns: returns}
	if p.accept("(") && !p.accept(")") {
		for {
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			s.Args = append(s.Args, e)
			if p.accept(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	return s, p.end()
}

// ParseTerm reads a single term.
func ParseTerm(src string) (term.Term, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	return t, p.end()
}

// ParseLiteral reads a literal such as `~env/light("on")[source(self)]`.
func ParseLiteral(src string) (*term.Literal, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	l, err := p.literal()
	if err != nil {
		return nil, err
	}
	return l, p.end()
}

func ParseExpression(src string) (execution.Expression, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	return e, p.end()
}

// ParseStep reads one body statement.
func ParseStep(src string) (execution.Step, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	s, err := p.step()
	if err != nil {
		return nil, err
	}
	return s, p.end()
}

// ParseTrigger reads a plan trigger: "+!goal(X)", "-!goal", "+belief" or
// "-belief".
func ParseTrigger(src string) (trigger.Type, *term.Literal, error) {
	p, err := newParser(src)
	if err != nil {
		return 0, nil, err
	}
	symbol := ""
	switch {
	case p.accept("+"):
		symbol = "+"
	case p.accept("-"):
		symbol = "-"
	default:
		return 0, nil, p.errorf("trigger must start with + or -")
	}
	if p.accept("!") {
		symbol += "!"
	}
	typ, err := trigger.ParseType(symbol)
	if err != nil {
		return 0, nil, err
	}
	l, err := p.literal()
	if err != nil {
		return 0, nil, err
	}
	return typ, l, p.end()
}
