// Package fuzzy implements graded truth values and the folds that reduce
// the results of plan bodies to success or failure.
package fuzzy

import (
	"fmt"
	"math"
)

// DefaultThreshold is the degree at or above which a defuzzified value counts
// as success.
const DefaultThreshold = 0.5

// Value is a graded truth value in [0, 1].
type Value struct {
	Degree float64
}

func True() Value  { return Value{Degree: 1} }
func False() Value { return Value{Degree: 0} }

// Of maps a boolean onto the crisp values.
func Of(b bool) Value {
	if b {
		return True()
	}
	return False()
}

// From clamps d into [0, 1]. NaN maps to False.
func From(d float64) Value {
	switch {
	case math.IsNaN(d), d <= 0:
		return False()
	case d >= 1:
		return True()
	}
	return Value{Degree: d}
}

func (v Value) String() string {
	return fmt.Sprintf("%.3g", v.Degree)
}

// Defuzzifier reduces a sequence of values to one and decides whether the
// result is a success.
type Defuzzifier interface {
	Apply(values []Value) Value
	Success(v Value) bool
}

// Conjunction takes the minimum. An empty sequence is true.
type Conjunction struct {
	Threshold float64
}

// NewConjunction returns a Conjunction with the given threshold, or the
// default one when threshold is not positive.
func NewConjunction(threshold float64) Conjunction {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Conjunction{Threshold: threshold}
}

func (c Conjunction) Apply(values []Value) Value {
	if len(values) == 0 {
		return True()
	}
	m := values[0].Degree
	for _, v := range values[1:] {
		m = math.Min(m, v.Degree)
	}
	return From(m)
}

func (c Conjunction) Success(v Value) bool {
	return v.Degree >= threshold(c.Threshold)
}

// Disjunction takes the maximum. An empty sequence is true.
type Disjunction struct {
	Threshold float64
}

func (d Disjunction) Apply(values []Value) Value {
	if len(values) == 0 {
		return True()
	}
	m := values[0].Degree
	for _, v := range values[1:] {
		m = math.Max(m, v.Degree)
	}
	return From(m)
}

func (d Disjunction) Success(v Value) bool {
	return v.Degree >= threshold(d.Threshold)
}

// Mean takes the arithmetic mean. An empty sequence is true.
type Mean struct {
	Threshold float64
}

func (m Mean) Apply(values []Value) Value {
	if len(values) == 0 {
		return True()
	}
	var sum float64
	for _, v := range values {
		sum += v.Degree
	}
	return From(sum / float64(len(values)))
}

func (m Mean) Success(v Value) bool {
	return v.Degree >= threshold(m.Threshold)
}

func threshold(t float64) float64 {
	if t <= 0 {
		return DefaultThreshold
	}
	return t
}

// ParseDefuzzifier maps a configuration name onto a Defuzzifier.
func ParseDefuzzifier(name string, threshold float64) (Defuzzifier, error) {
	switch name {
	case "", "conjunction", "min":
		return NewConjunction(threshold), nil
	case "disjunction", "max":
		return Disjunction{Threshold: threshold}, nil
	case "mean":
		return Mean{Threshold: threshold}, nil
	}
	return nil, fmt.Errorf("unknown defuzzifier %q", name)
}
