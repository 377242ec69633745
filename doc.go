// Package vclock holds the vocabulary shared by the virtual-time schedulers
// in its subpackages: disposable handles, clock comparers, and the minimal
// Time constraint a clock value must satisfy. The scheduler engine lives in
// [github.com/noodlebox/vclock/virtualtime]; [historicaltime] and
// [steppedtime] instantiate it for [time.Time] and integer ticks.
//
// None of the schedulers wait on a wall clock. Virtual time only moves when
// a caller starts, advances, or sleeps a scheduler, so every run over the
// same inputs produces the same sequence of actions.
package vclock
