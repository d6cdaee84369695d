package store

import (
	"fmt"

	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	wireEmpty uint8 = iota
	wireConstant
	wireList
	wireVariable
	wireLiteral
)

type wireTerm struct {
	Kind    uint8      `msgpack:"k"`
	Value   any        `msgpack:"v"`
	Items   []wireTerm `msgpack:"i,omitempty"`
	Path    string     `msgpack:"p,omitempty"`
	Bound   *wireTerm  `msgpack:"b,omitempty"`
	Literal *wireLit   `msgpack:"l,omitempty"`
}

type wireLit struct {
	Functor     string     `msgpack:"f"`
	Negated     bool       `msgpack:"n,omitempty"`
	Values      []wireTerm `msgpack:"v,omitempty"`
	Annotations []wireLit  `msgpack:"a,omitempty"`
}

// EncodeLiteral serialises l with msgpack. Equal literals encode to equal
// bytes. Constants must hold nil, a number, a string, a bool or a list.
func EncodeLiteral(l *term.Literal) ([]byte, error) {
	w, err := fromLiteral(l)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// DecodeLiteral is the inverse of EncodeLiteral.
func DecodeLiteral(b []byte) (*term.Literal, error) {
	var w wireLit
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return w.literal()
}

func fromLiteral(l *term.Literal) (wireLit, error) {
	w := wireLit{Functor: string(l.Functor()), Negated: l.Negated()}
	for _, v := range l.Values() {
		t, err := fromTerm(v)
		if err != nil {
			return wireLit{}, err
		}
		w.Values = append(w.Values, t)
	}
	for _, a := range l.Annotations() {
		t, err := fromLiteral(a)
		if err != nil {
			return wireLit{}, err
		}
		w.Annotations = append(w.Annotations, t)
	}
	return w, nil
}

func fromTerm(t term.Term) (wireTerm, error) {
	switch x := t.(type) {
	case *term.Constant:
		if items, ok := x.Items(); ok {
			w := wireTerm{Kind: wireList, Items: make([]wireTerm, 0, len(items))}
			for _, item := range items {
				i, err := fromTerm(item)
				if err != nil {
					return wireTerm{}, err
				}
				w.Items = append(w.Items, i)
			}
			return w, nil
		}
		switch v := x.Raw().(type) {
		case float64:
			if v == 0 {
				v = 0
			}
			return wireTerm{Kind: wireConstant, Value: v}, nil
		case nil, string, bool:
			return wireTerm{Kind: wireConstant, Value: v}, nil
		}
		return wireTerm{}, fmt.Errorf("%w: constant of type %T", ErrUnsupported, x.Raw())
	case *term.Variable:
		w := wireTerm{Kind: wireVariable, Path: string(x.Path())}
		if x.Bound() {
			b, err := fromTerm(x.Value())
			if err != nil {
				return wireTerm{}, err
			}
			w.Bound = &b
		}
		return w, nil
	case *term.Literal:
		l, err := fromLiteral(x)
		if err != nil {
			return wireTerm{}, err
		}
		return wireTerm{Kind: wireLiteral, Literal: &l}, nil
	}
	if term.IsEmpty(t) {
		return wireTerm{Kind: wireEmpty}, nil
	}
	return wireTerm{}, fmt.Errorf("%w: %T", ErrUnsupported, t)
}

func (w wireLit) literal() (*term.Literal, error) {
	if w.Functor == "" {
		return nil, fmt.Errorf("%w: empty functor", ErrCorrupt)
	}
	values := make([]term.Term, len(w.Values))
	for i, v := range w.Values {
		t, err := v.term()
		if err != nil {
			return nil, err
		}
		values[i] = t
	}
	annotations := make([]*term.Literal, len(w.Annotations))
	for i, a := range w.Annotations {
		l, err := a.literal()
		if err != nil {
			return nil, err
		}
		annotations[i] = l
	}
	return term.NewLiteral(term.Path(w.Functor), w.Negated, values, annotations), nil
}

func (w wireTerm) term() (term.Term, error) {
	switch w.Kind {
	case wireEmpty:
		return term.Empty, nil
	case wireConstant:
		return term.NewConstant(w.Value), nil
	case wireList:
		items := make([]term.Term, len(w.Items))
		for i, item := range w.Items {
			t, err := item.term()
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		return term.List(items...), nil
	case wireVariable:
		if w.Bound == nil {
			return term.NewVariable(term.Path(w.Path)), nil
		}
		b, err := w.Bound.term()
		if err != nil {
			return nil, err
		}
		return term.BoundVariable(term.Path(w.Path), b), nil
	case wireLiteral:
		if w.Literal == nil {
			return nil, fmt.Errorf("%w: literal term without literal", ErrCorrupt)
		}
		return w.Literal.literal()
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrCorrupt, w.Kind)
}
