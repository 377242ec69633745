package virtualtime

import (
	"github.com/noodlebox/vclock"
)

// A RecursiveAction runs with a continuation that schedules the same action
// again, with new state, at an absolute due time.
type RecursiveAction[T any] func(state any, reschedule func(state any, due T))

// A RecursiveRelativeAction runs with a continuation that schedules the same
// action again, with new state, a delay after the clock at the time of the
// call.
type RecursiveRelativeAction[D any] func(state any, reschedule func(state any, delay D))

// ScheduleRecursive queues action to run at the current clock. Each call to
// its continuation queues it again at the clock current at that moment.
func (s *Scheduler[T, D]) ScheduleRecursive(state any, action func(state any, reschedule func(state any))) *Handle[T] {
	if action == nil {
		panic("nil action for virtualtime.Scheduler.ScheduleRecursive")
	}
	return s.ScheduleRecursiveAbsolute(state, s.clock, func(state any, reschedule func(any, T)) {
		action(state, func(state any) { reschedule(state, s.clock) })
	})
}

// ScheduleRecursiveAbsolute queues action to run at due. The continuation
// never runs the action directly; it queues a new item, so each repetition
// returns to the run loop before the next one starts. Disposing the
// returned Handle cancels whatever repetition is pending and turns later
// continuation calls into no-ops.
func (s *Scheduler[T, D]) ScheduleRecursiveAbsolute(state any, due T, action RecursiveAction[T]) *Handle[T] {
	if action == nil {
		panic("nil action for virtualtime.Scheduler.ScheduleRecursiveAbsolute")
	}
	h := &Handle[T]{}
	var run Action
	reschedule := func(state any, due T) {
		if h.disposed {
			return
		}
		s.enqueue(h, state, due, run)
	}
	run = func(state any) vclock.Disposable {
		action(state, reschedule)
		return nil
	}
	s.enqueue(h, state, due, run)
	return h
}

// ScheduleRecursiveRelative queues action to run delay after the clock.
// Continuation delays are measured from the clock at the time of the call,
// so an action that sleeps before rescheduling pushes its next run out.
func (s *Scheduler[T, D]) ScheduleRecursiveRelative(state any, delay D, action RecursiveRelativeAction[D]) *Handle[T] {
	if action == nil {
		panic("nil action for virtualtime.Scheduler.ScheduleRecursiveRelative")
	}
	return s.ScheduleRecursiveAbsolute(state, s.clock.Add(delay), func(state any, reschedule func(any, T)) {
		action(state, func(state any, delay D) { reschedule(state, s.clock.Add(delay)) })
	})
}

// SchedulePeriodic runs action every period, starting one period from now.
// Each run receives the state returned by the previous one. The period must
// move the clock forward; otherwise a *RangeError is returned and nothing
// is scheduled.
func (s *Scheduler[T, D]) SchedulePeriodic(state any, period D, action func(state any) any) (*Handle[T], error) {
	if action == nil {
		panic("nil action for virtualtime.Scheduler.SchedulePeriodic")
	}
	first := s.clock.Add(period)
	if s.compare(s.clock, first) >= 0 {
		return nil, &RangeError[T]{Op: "schedule periodic", Clock: s.clock, Target: first}
	}
	return s.ScheduleRecursiveRelative(state, period, func(state any, reschedule func(any, D)) {
		reschedule(action(state), period)
	}), nil
}
