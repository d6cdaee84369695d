package execution

import (
	"errors"
	"fmt"
)

var (
	ErrVariableNotFound = errors.New("variable not found")
	ErrMissingReturn    = errors.New("missing return value")
	ErrArgumentCount    = errors.New("not enough arguments")
	ErrUnknownAction    = errors.New("unknown action")
	ErrIllegalState     = errors.New("illegal state")
)

// Error is a failure while instantiating a plan or rule. It aborts that
// instantiation only.
type Error struct {
	Instance string
	Step     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Instance, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(c *Context, s fmt.Stringer, err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	e := &Error{Err: err}
	if c != nil && c.instance != nil {
		e.Instance = c.instance.Name()
	}
	if s != nil {
		e.Step = s.String()
	}
	return e
}
