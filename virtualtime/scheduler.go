package virtualtime

import (
	"log/slog"

	"github.com/noodlebox/vclock"
)

// An Action is the body of a scheduled item. It receives the state passed
// when it was scheduled and may return a Disposable, which is then owned by
// the item's Handle.
type Action func(state any) vclock.Disposable

// Scheduler runs actions in virtual time. T is the clock value and D the
// amount added to it by relative scheduling, AdvanceBy, and Sleep.
type Scheduler[T vclock.Time[T, D], D any] struct {
	clock   T
	compare vclock.Comparer[T]
	queue   queue[T]
	enabled bool

	logger  *slog.Logger
	metrics *metrics
	recover func(r any, due T)
	trace   func(Event[T])
}

// New returns a stopped Scheduler with its clock set to initial. Unless
// WithComparer is given, clock values are ordered by T's Compare method.
func New[T vclock.Time[T, D], D any](initial T, opts ...Option[T]) *Scheduler[T, D] {
	o := options[T]{
		compare: vclock.Natural[T](),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler[T, D]{
		clock:   initial,
		compare: o.compare,
		queue:   queue[T]{compare: o.compare},
		logger:  o.logger,
		metrics: newMetrics(o.registry, o.namespace),
		recover: o.recover,
		trace:   o.trace,
	}
}

// Now returns the current virtual time.
func (s *Scheduler[T, D]) Now() T {
	return s.clock
}

// Clock returns the current virtual time. It is the same as Now.
func (s *Scheduler[T, D]) Clock() T {
	return s.clock
}

// Compare orders a and b with the scheduler's comparer.
func (s *Scheduler[T, D]) Compare(a, b T) int {
	return s.compare(a, b)
}

// IsEnabled reports whether the run loop is draining the queue. It is true
// inside a running action until that action calls Stop.
func (s *Scheduler[T, D]) IsEnabled() bool {
	return s.enabled
}

// Len returns the number of items in the queue, counting disposed items
// that the run loop has not discarded yet.
func (s *Scheduler[T, D]) Len() int {
	return s.queue.Len()
}

// NextAt returns the due time of the next action that will run. The second
// result is false if nothing is pending.
func (s *Scheduler[T, D]) NextAt() (when T, ok bool) {
	if it := s.next(); it != nil {
		return it.due, true
	}
	return
}

// Schedule queues action to run at the current virtual time.
func (s *Scheduler[T, D]) Schedule(state any, action Action) *Handle[T] {
	return s.ScheduleAbsolute(state, s.clock, action)
}

// ScheduleAbsolute queues action to run at due. A due time at or before the
// clock runs at the current clock the next time the queue is drained.
func (s *Scheduler[T, D]) ScheduleAbsolute(state any, due T, action Action) *Handle[T] {
	if action == nil {
		panic("nil action for virtualtime.Scheduler.ScheduleAbsolute")
	}
	h := &Handle[T]{}
	s.enqueue(h, state, due, action)
	return h
}

// ScheduleRelative queues action to run delay after the current clock.
func (s *Scheduler[T, D]) ScheduleRelative(state any, delay D, action Action) *Handle[T] {
	return s.ScheduleAbsolute(state, s.clock.Add(delay), action)
}

func (s *Scheduler[T, D]) enqueue(h *Handle[T], state any, due T, action Action) {
	it := &item[T]{
		due:    due,
		seq:    sequence.Add(1),
		state:  state,
		action: action,
		handle: h,
	}
	h.track(it)
	s.queue.insert(it)
	s.metrics.scheduledOne(s.queue.Len())
}

// next discards disposed items from the head of the queue and returns the
// first live one, leaving it queued.
func (s *Scheduler[T, D]) next() *item[T] {
	for it := s.queue.peek(); it != nil; it = s.queue.peek() {
		if !it.cancelled {
			return it
		}
		s.queue.extract()
		s.metrics.cancelledOne(s.queue.Len())
		s.emit(Skipped, it)
		s.logger.Debug("discarded disposed action", "seq", it.seq, "due", it.due)
	}
	return nil
}

// Start drains the queue until it is empty or an action calls Stop. Calling
// Start while the run loop is already draining does nothing.
func (s *Scheduler[T, D]) Start() {
	if s.enabled {
		return
	}
	s.drain(false, s.clock)
}

// Stop asks the run loop to return once the running action finishes. A
// later Start resumes with the next pending action.
func (s *Scheduler[T, D]) Stop() {
	s.enabled = false
}

// AdvanceTo runs every action due at or before target, then sets the clock
// to target. It returns a *RangeError if target is before the clock. A
// target equal to the clock, or a call made while the run loop is already
// draining, does nothing.
func (s *Scheduler[T, D]) AdvanceTo(target T) error {
	c := s.compare(s.clock, target)
	if c > 0 {
		return &RangeError[T]{Op: "advance to", Clock: s.clock, Target: target}
	}
	if c == 0 || s.enabled {
		return nil
	}
	s.drain(true, target)
	s.clock = target
	return nil
}

// AdvanceBy is AdvanceTo(Now().Add(d)). It returns a *RangeError if d would
// move the clock backward.
func (s *Scheduler[T, D]) AdvanceBy(d D) error {
	target := s.clock.Add(d)
	if s.compare(s.clock, target) > 0 {
		return &RangeError[T]{Op: "advance by", Clock: s.clock, Target: target}
	}
	return s.AdvanceTo(target)
}

// Sleep moves the clock forward by d without running anything. Used from
// inside an action, it makes work rescheduled afterwards start from the
// later time. It returns a *RangeError if d would move the clock backward.
func (s *Scheduler[T, D]) Sleep(d D) error {
	target := s.clock.Add(d)
	if s.compare(s.clock, target) > 0 {
		return &RangeError[T]{Op: "sleep", Clock: s.clock, Target: target}
	}
	s.clock = target
	return nil
}

func (s *Scheduler[T, D]) drain(bounded bool, target T) {
	s.enabled = true
	var executed int
	defer func() {
		s.enabled = false
		s.logger.Debug("drain finished", "executed", executed, "clock", s.clock, "pending", s.queue.Len())
	}()

	s.logger.Debug("drain started", "clock", s.clock, "pending", s.queue.Len())
	for s.enabled {
		it := s.next()
		if it == nil || bounded && s.compare(it.due, target) > 0 {
			return
		}
		s.queue.extract()
		s.metrics.setDepth(s.queue.Len())
		if s.compare(it.due, s.clock) > 0 {
			s.clock = it.due
		}
		executed++
		s.invoke(it)
	}
}

func (s *Scheduler[T, D]) invoke(it *item[T]) {
	if s.recover != nil {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("recovered panic in scheduled action", "seq", it.seq, "due", it.due, "panic", r)
				s.metrics.recoveredOne()
				s.emit(Recovered, it)
				s.recover(r, it.due)
			}
		}()
	}
	d := it.action(it.state)
	it.handle.attach(d)
	s.metrics.executedOne()
	s.emit(Executed, it)
}

func (s *Scheduler[T, D]) emit(kind EventKind, it *item[T]) {
	if s.trace == nil {
		return
	}
	s.trace(Event[T]{Kind: kind, Seq: it.seq, Due: it.due, Clock: s.clock})
}
