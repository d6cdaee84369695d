// Package trigger defines the events that drive plan selection.
package trigger

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/bdi/internal/term"
)

// Type is the kind of event a trigger carries.
type Type uint8

const (
	AddBelief Type = iota + 1
	DeleteBelief
	AddGoal
	DeleteGoal
	AddAchievement
	DeleteAchievement
)

var typeSymbols = map[Type]string{
	AddBelief:         "+",
	DeleteBelief:      "-",
	AddGoal:           "+!",
	DeleteGoal:        "-!",
	AddAchievement:    "+!",
	DeleteAchievement: "-!",
}

var typeNames = map[Type]string{
	AddBelief:         "ADD_BELIEF",
	DeleteBelief:      "DELETE_BELIEF",
	AddGoal:           "ADD_GOAL",
	DeleteGoal:        "DELETE_GOAL",
	AddAchievement:    "ADD_ACHIEVEMENT",
	DeleteAchievement: "DELETE_ACHIEVEMENT",
}

// Symbol returns the textual prefix of the type, e.g. "+!".
func (t Type) Symbol() string {
	return typeSymbols[t]
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Canonical folds the achievement types into their goal counterparts; plans
// are indexed by the canonical type.
func (t Type) Canonical() Type {
	switch t {
	case AddAchievement:
		return AddGoal
	case DeleteAchievement:
		return DeleteGoal
	}
	return t
}

// Goal reports whether t is a goal or achievement type.
func (t Type) Goal() bool {
	c := t.Canonical()
	return c == AddGoal || c == DeleteGoal
}

// ParseType maps a textual prefix or a type name to a Type. The prefixes
// "+!" and "-!" always yield the goal types.
func ParseType(s string) (Type, error) {
	switch s {
	case "+":
		return AddBelief, nil
	case "-":
		return DeleteBelief, nil
	case "+!":
		return AddGoal, nil
	case "-!":
		return DeleteGoal, nil
	}
	for t := AddBelief; t <= DeleteAchievement; t++ {
		if strings.EqualFold(s, typeNames[t]) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger type %q", s)
}

// Trigger is an immutable event value.
type Trigger struct {
	typ     Type
	literal *term.Literal
}

func New(t Type, l *term.Literal) Trigger {
	return Trigger{typ: t, literal: l}
}

func (t Trigger) Type() Type             { return t.typ }
func (t Trigger) Literal() *term.Literal { return t.literal }

// Equal compares type and literal.
func (t Trigger) Equal(o Trigger) bool {
	if t.typ != o.typ {
		return false
	}
	if t.literal == nil || o.literal == nil {
		return t.literal == o.literal
	}
	return t.literal.Equal(o.literal)
}

// Hash combines the type with the literal hash.
func (t Trigger) Hash() uint64 {
	var h uint64
	if t.literal != nil {
		h = t.literal.Hash()
	}
	return h*31 + uint64(t.typ)
}

func (t Trigger) String() string {
	if t.literal == nil {
		return t.typ.Symbol()
	}
	return t.typ.Symbol() + t.literal.String()
}
