package store

import "errors"

var (
	ErrUnsupported = errors.New("unsupported term")
	ErrCorrupt     = errors.New("corrupt literal")
)
