// Package virtualtime provides a deterministic scheduler driven by a
// virtual clock. Actions are queued against a due time and run in order of
// that time, as decided by a pluggable comparer, with ties broken by the
// order in which they were scheduled. Time only moves when the scheduler is
// started, advanced, or put to sleep, never by the wall clock.
//
// A Scheduler is not safe for concurrent use. Actions run synchronously on
// the goroutine that called Start, AdvanceTo, or AdvanceBy, and may use the
// scheduler themselves: schedule more work, dispose pending work, stop the
// run loop, or sleep.
package virtualtime
