package vclock

import (
	"cmp"
	"time"
)

type Duration = time.Duration

// Time[T, D] is the minimal API needed for a virtual clock value. Adding a
// D to a T yields a later (or earlier, for negative D) T. The standard
// library's `time.Time` implements `Time[time.Time, time.Duration]`.
type Time[T any, D any] interface {
	Add(D) T
	Compare(T) int
}

// Clock[T, TK, TM] is a minimal generic API for a clock that uses a given
// `Time` implementation, T, and hands out tickers of type TK and timers of
// type TM.
type Clock[T any, TK Ticker[T], TM Timer[T]] interface {
	// Generate `Time`s
	Now() T

	// Generate `Duration`s
	ParseDuration(string) (Duration, error)
	Since(T) Duration
	Until(T) Duration

	// Program flow control
	Sleep(d Duration)

	// Generate `Ticker`s
	NewTicker(d Duration) TK
	Tick(d Duration) <-chan T

	// Generate `Timer`s
	NewTimer(Duration) TM
	After(Duration) <-chan T
	AfterFunc(Duration, func()) TM
}

// A Ticker holds a channel that delivers “ticks” of a clock at intervals.
type Ticker[T any] interface {
	C() <-chan T
	Reset(d Duration)
	Stop()
}

type Timer[T any] interface {
	C() <-chan T
	Reset(d Duration) bool
	Stop() bool
}

// A Comparer orders clock values. It returns a negative number when a comes
// before b, a positive number when a comes after b, and zero when they are
// the same instant.
type Comparer[T any] func(a, b T) int

// Natural returns the Comparer that uses T's own Compare method.
func Natural[T interface{ Compare(T) int }]() Comparer[T] {
	return func(a, b T) int { return a.Compare(b) }
}

// Ordered returns the Comparer for a built-in ordered type.
func Ordered[T cmp.Ordered]() Comparer[T] {
	return cmp.Compare[T]
}

// Reverse returns a Comparer that orders values opposite to c.
func Reverse[T any](c Comparer[T]) Comparer[T] {
	return func(a, b T) int { return c(b, a) }
}

// A Disposable releases whatever it was returned for. Dispose must be safe
// to call more than once.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to a Disposable. The function runs on
// every call to Dispose; use [Once] for a single-shot version.
type DisposableFunc func()

// Dispose calls f.
func (f DisposableFunc) Dispose() { f() }

type once struct {
	f func()
}

func (o *once) Dispose() {
	if f := o.f; f != nil {
		o.f = nil
		f()
	}
}

// Once returns a Disposable that calls f the first time it is disposed.
func Once(f func()) Disposable {
	return &once{f}
}

// Composite disposes a group of Disposables together. Anything added after
// the group has been disposed is disposed immediately.
type Composite struct {
	items    []Disposable
	disposed bool
}

// NewComposite returns a Composite holding ds.
func NewComposite(ds ...Disposable) *Composite {
	c := &Composite{}
	for _, d := range ds {
		c.Add(d)
	}
	return c
}

// Add puts d in the group. A nil d is ignored.
func (c *Composite) Add(d Disposable) {
	if d == nil {
		return
	}
	if c.disposed {
		d.Dispose()
		return
	}
	c.items = append(c.items, d)
}

// Len returns the number of Disposables still held.
func (c *Composite) Len() int {
	return len(c.items)
}

// Disposed reports whether Dispose has been called.
func (c *Composite) Disposed() bool {
	return c.disposed
}

// Dispose disposes every member in the order they were added.
func (c *Composite) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	items := c.items
	c.items = nil
	for _, d := range items {
		d.Dispose()
	}
}
