package virtualtime

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noodlebox/vclock"
)

type options[T any] struct {
	compare   vclock.Comparer[T]
	logger    *slog.Logger
	registry  prometheus.Registerer
	namespace string
	recover   func(r any, due T)
	trace     func(Event[T])
}

// An Option configures a Scheduler.
type Option[T any] func(*options[T])

// WithComparer orders the queue and the clock with c instead of the clock
// type's own Compare method.
func WithComparer[T any](c vclock.Comparer[T]) Option[T] {
	return func(o *options[T]) {
		o.compare = c
	}
}

// WithLogger sets the logger used for run loop diagnostics. Drains are
// logged at debug level, recovered panics at error level.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = l
	}
}

// WithMetrics registers the scheduler's counters and queue depth gauge with
// reg under the given namespace.
func WithMetrics[T any](reg prometheus.Registerer, namespace string) Option[T] {
	return func(o *options[T]) {
		o.registry = reg
		o.namespace = namespace
	}
}

// WithRecover makes the run loop recover from a panicking action, report it
// to fn along with the action's due time, and carry on with the next item.
// Without it, the panic propagates to the caller of Start or AdvanceTo.
func WithRecover[T any](fn func(r any, due T)) Option[T] {
	return func(o *options[T]) {
		o.recover = fn
	}
}

// WithTrace calls fn for every item the run loop takes off the queue.
func WithTrace[T any](fn func(Event[T])) Option[T] {
	return func(o *options[T]) {
		o.trace = fn
	}
}

// EventKind says what the run loop did with an item.
type EventKind int

const (
	Executed EventKind = iota
	Skipped
	Recovered
)

func (k EventKind) String() string {
	switch k {
	case Executed:
		return "executed"
	case Skipped:
		return "skipped"
	case Recovered:
		return "recovered"
	}
	return "unknown"
}

// An Event records one item leaving the queue.
type Event[T any] struct {
	Kind  EventKind
	Seq   uint64
	Due   T
	Clock T
}
