package virtualtime

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned, wrapped in a *RangeError, by any operation
// that would move the clock backward.
var ErrOutOfRange = errors.New("virtualtime: time out of range")

// RangeError describes a rejected attempt to move the clock.
type RangeError[T any] struct {
	Op     string
	Clock  T
	Target T
}

func (e *RangeError[T]) Error() string {
	return fmt.Sprintf("virtualtime: %s: target %v out of range at clock %v", e.Op, e.Target, e.Clock)
}

func (e *RangeError[T]) Unwrap() error {
	return ErrOutOfRange
}
