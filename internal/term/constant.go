package term

import (
	"fmt"
	"strconv"
	"strings"
)

// Constant is an atomic value: number, string, boolean, list or an opaque
// Go value handed in by an action.
type Constant struct {
	value any
	hash  uint64
}

// NewConstant wraps v. Integer and float types are normalised to float64,
// []any becomes a list of terms.
func NewConstant(v any) *Constant {
	v = normalise(v)
	h := newHasher()
	h.value(v)
	return &Constant{value: v, hash: h.sum()}
}

// Of returns t unchanged when it already is a Term, otherwise a Constant.
func Of(v any) Term {
	if t, ok := v.(Term); ok && t != nil {
		return t
	}
	return NewConstant(v)
}

// List builds a list constant.
func List(items ...Term) *Constant {
	return NewConstant(append([]Term(nil), items...))
}

func normalise(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []any:
		items := make([]Term, len(x))
		for i, item := range x {
			items[i] = Of(item)
		}
		return items
	}
	return v
}

func (c *Constant) Kind() Kind   { return KindConstant }
func (c *Constant) Raw() any     { return c.value }
func (c *Constant) Hash() uint64 { return c.hash }

// Number returns the numeric value of the constant.
func (c *Constant) Number() (float64, bool) {
	f, ok := c.value.(float64)
	return f, ok
}

// Items returns the elements of a list constant.
func (c *Constant) Items() ([]Term, bool) {
	items, ok := c.value.([]Term)
	if !ok {
		return nil, false
	}
	return append([]Term(nil), items...), true
}

func (c *Constant) DeepCopy() Term {
	items, ok := c.value.([]Term)
	if !ok {
		return c
	}
	cloned := make([]Term, len(items))
	for i, t := range items {
		cloned[i] = t.DeepCopy()
	}
	return &Constant{value: cloned, hash: c.hash}
}

func (c *Constant) String() string {
	switch x := c.value.(type) {
	case nil:
		return "nil"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return strconv.Quote(x)
	case []Term:
		parts := make([]string, len(x))
		for i, t := range x {
			parts[i] = t.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(c.value)
}
