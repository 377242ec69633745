package steppedtime

import (
	"sync"

	"github.com/noodlebox/vclock"
	"github.com/noodlebox/vclock/virtualtime"
)

// Clock is a clock that only moves when it is set or stepped. Timers and
// tickers created with it fire, in order, as stepping carries the clock past
// their deadlines. A Clock is safe for concurrent use.
type Clock struct {
	sched *virtualtime.Scheduler[Time, Duration]

	mu sync.Mutex
}

var (
	_ vclock.Clock[Time, *Ticker, *Timer] = (*Clock)(nil)
	_ vclock.Ticker[Time]                 = (*Ticker)(nil)
	_ vclock.Timer[Time]                  = (*Timer)(nil)
)

// NewClock returns a Clock at the zero Time. Options are passed to the
// underlying [virtualtime.Scheduler]; the clock always runs forward, so a
// [virtualtime.WithComparer] option is overridden.
func NewClock(opts ...virtualtime.Option[Time]) *Clock {
	opts = append(opts[:len(opts):len(opts)], virtualtime.WithComparer(vclock.Natural[Time]()))
	return &Clock{sched: virtualtime.New[Time, Duration](0, opts...)}
}

func (c *Clock) lock()   { c.mu.Lock() }
func (c *Clock) unlock() { c.mu.Unlock() }

// Set moves the clock to now, firing every timer due on the way. It returns
// an error wrapping [virtualtime.ErrOutOfRange] if now is in the past.
func (c *Clock) Set(now Time) error {
	c.lock()
	defer c.unlock()
	return c.sched.AdvanceTo(now)
}

// Step moves the clock forward by dt, firing every timer due on the way. It
// returns an error wrapping [virtualtime.ErrOutOfRange] if dt is negative.
func (c *Clock) Step(dt Duration) error {
	c.lock()
	defer c.unlock()
	return c.sched.AdvanceBy(dt)
}

// StepNext moves the clock to the next timer deadline and fires everything
// due then. It returns the new time, or false if no timer is active.
func (c *Clock) StepNext() (Time, bool) {
	c.lock()
	defer c.unlock()
	next, ok := c.sched.NextAt()
	if !ok {
		return c.sched.Now(), false
	}
	if now := c.sched.Now(); next.After(now) {
		// Cannot fail: the ordering is natural and next is after now.
		_ = c.sched.AdvanceTo(next)
	} else {
		// Overdue timers: drain up to a marker queued behind them.
		c.sched.ScheduleAbsolute(nil, now, func(any) vclock.Disposable {
			c.sched.Stop()
			return nil
		})
		c.sched.Start()
	}
	return c.sched.Now(), true
}

// NextAt returns the time of the next timer deadline, or false if no timer
// is active.
func (c *Clock) NextAt() (Time, bool) {
	c.lock()
	defer c.unlock()
	return c.sched.NextAt()
}

func (c *Clock) Now() (now Time) {
	c.lock()
	now = c.sched.Now()
	c.unlock()
	return
}

func (c *Clock) Since(t Time) Duration {
	return c.Now().Sub(t)
}

func (c *Clock) Until(t Time) Duration {
	return t.Sub(c.Now())
}

// Sleep blocks until another goroutine steps the clock at least d past the
// current time. A negative or zero duration returns immediately.
func (c *Clock) Sleep(d Duration) {
	if d <= 0 {
		return
	}

	ch := make(chan struct{})
	c.lock()
	c.sched.ScheduleRelative(nil, d, func(any) vclock.Disposable {
		close(ch)
		return nil
	})
	c.unlock()
	<-ch
}

// send delivers the current time on ch without blocking the run loop.
func (c *Clock) send(ch chan<- Time) {
	select {
	case ch <- c.sched.Now():
	default:
	}
}

type Ticker struct {
	c    <-chan Time
	h    *virtualtime.Handle[Time]
	tick func(any) any
	s    *Clock
}

func (t *Ticker) C() <-chan Time {
	return t.c
}

func (t *Ticker) Reset(d Duration) {
	if d <= 0 {
		panic("non-positive interval for steppedtime.Ticker.Reset")
	}
	if t.h == nil {
		panic("Reset called on uninitialized steppedtime.Ticker")
	}

	t.s.lock()
	t.h.Dispose()
	t.h, _ = t.s.sched.SchedulePeriodic(nil, d, t.tick)
	t.s.unlock()
}

func (t *Ticker) Stop() {
	if t.h == nil {
		panic("Stop called on uninitialized steppedtime.Ticker")
	}

	t.s.lock()
	t.h.Dispose()
	t.s.unlock()
}

// NewTicker returns a Ticker that sends the time on its channel every d.
// Ticks are dropped while the channel holds an unread value. The duration d
// must be greater than zero; if not, NewTicker will panic.
func (c *Clock) NewTicker(d Duration) *Ticker {
	if d <= 0 {
		panic("non-positive interval for steppedtime.Clock.NewTicker")
	}

	ch := make(chan Time, 1)
	t := &Ticker{
		c: ch,
		tick: func(state any) any {
			c.send(ch)
			return state
		},
		s: c,
	}
	c.lock()
	t.h, _ = c.sched.SchedulePeriodic(nil, d, t.tick)
	c.unlock()
	return t
}

func (c *Clock) Tick(d Duration) <-chan Time {
	if d <= 0 {
		return nil
	}

	return c.NewTicker(d).c
}

type Timer struct {
	c    <-chan Time
	h    *virtualtime.Handle[Time]
	fire virtualtime.Action
	s    *Clock
}

func (t *Timer) C() <-chan Time {
	return t.c
}

// Reset changes the timer to expire d after the current time. It returns
// true if the timer had been active.
func (t *Timer) Reset(d Duration) (active bool) {
	if t.h == nil {
		panic("Reset called on uninitialized steppedtime.Timer")
	}

	t.s.lock()
	active = t.h.Pending()
	t.h.Dispose()
	t.h = t.s.sched.ScheduleRelative(nil, d, t.fire)
	t.s.unlock()
	return
}

// Stop prevents the timer from firing. It returns true if the timer had
// been active.
func (t *Timer) Stop() (active bool) {
	if t.h == nil {
		panic("Stop called on uninitialized steppedtime.Timer")
	}

	t.s.lock()
	active = t.h.Pending()
	t.h.Dispose()
	t.s.unlock()
	return
}

func (c *Clock) newTimer(d Duration, ch chan Time, fire virtualtime.Action) *Timer {
	t := &Timer{c: ch, fire: fire, s: c}
	c.lock()
	t.h = c.sched.ScheduleRelative(nil, d, fire)
	c.unlock()
	return t
}

func (c *Clock) NewTimer(d Duration) *Timer {
	ch := make(chan Time, 1)
	return c.newTimer(d, ch, func(any) vclock.Disposable {
		c.send(ch)
		return nil
	})
}

func (c *Clock) After(d Duration) <-chan Time {
	return c.NewTimer(d).c
}

// AfterFunc calls f in its own goroutine once the clock is stepped d past
// the current time, so f may use the clock freely.
func (c *Clock) AfterFunc(d Duration, f func()) *Timer {
	return c.newTimer(d, nil, func(any) vclock.Disposable {
		go f()
		return nil
	})
}
