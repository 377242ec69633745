package virtualtime_test

import (
	"cmp"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodlebox/vclock"
	. "github.com/noodlebox/vclock/virtualtime"
)

// tick is a bare integer clock.
type tick int64

func (t tick) Add(d tick) tick    { return t + d }
func (t tick) Compare(u tick) int { return cmp.Compare(t, u) }

func newScheduler(opts ...Option[tick]) *Scheduler[tick, tick] {
	return New[tick, tick](0, opts...)
}

type stamped struct {
	value int
	at    tick
}

// record returns an Action appending value and the clock at run time.
func record(s *Scheduler[tick, tick], list *[]stamped, value int) Action {
	return func(any) vclock.Disposable {
		*list = append(*list, stamped{value, s.Now()})
		return nil
	}
}

func TestConstructor(t *testing.T) {
	s := newScheduler()
	assert.Equal(t, tick(0), s.Clock())
	assert.Equal(t, tick(0), s.Now())
	assert.False(t, s.IsEnabled())
	assert.Equal(t, 0, s.Len())
}

func TestStartAndStop(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 0, record(s, &list, 1))
	s.ScheduleAbsolute(nil, 1, record(s, &list, 2))
	s.ScheduleAbsolute(nil, 2, func(any) vclock.Disposable { s.Stop(); return nil })
	s.ScheduleAbsolute(nil, 3, record(s, &list, 3))
	s.ScheduleAbsolute(nil, 4, func(any) vclock.Disposable { s.Stop(); return nil })
	s.ScheduleAbsolute(nil, 5, func(any) vclock.Disposable { s.Start(); return nil })
	s.ScheduleAbsolute(nil, 6, record(s, &list, 4))

	for _, want := range []tick{2, 4, 6, 6} {
		s.Start()
		assert.Equal(t, want, s.Now())
		assert.Equal(t, want, s.Clock())
		assert.False(t, s.IsEnabled())
	}

	assert.Equal(t, []stamped{{1, 0}, {2, 1}, {3, 3}, {4, 6}}, list)
}

func TestOrder(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 2, record(s, &list, 2))
	s.ScheduleAbsolute(nil, 3, record(s, &list, 3))
	s.ScheduleAbsolute(nil, 1, record(s, &list, 0))
	s.ScheduleAbsolute(nil, 1, record(s, &list, 1))

	s.Start()

	assert.Equal(t, []stamped{{0, 1}, {1, 1}, {2, 2}, {3, 3}}, list)
}

func TestOrderRandomized(t *testing.T) {
	s := newScheduler()
	rng := rand.New(rand.NewSource(42))

	type entry struct {
		due   tick
		index int
	}
	var want, got []entry
	for i := 0; i < 500; i++ {
		e := entry{tick(rng.Intn(50)), i}
		want = append(want, e)
		s.ScheduleAbsolute(e, e.due, func(state any) vclock.Disposable {
			got = append(got, state.(entry))
			return nil
		})
	}
	sort.SliceStable(want, func(i, j int) bool { return want[i].due < want[j].due })

	s.Start()

	require.Equal(t, want, got)
}

func TestCancellation(t *testing.T) {
	s := newScheduler()
	var list []stamped

	d := s.ScheduleAbsolute(nil, 2, record(s, &list, 2))
	s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable {
		list = append(list, stamped{0, s.Now()})
		d.Dispose()
		return nil
	})

	s.Start()

	assert.Equal(t, []stamped{{0, 1}}, list)
	assert.True(t, d.Disposed())
	assert.False(t, d.Pending())
	assert.Equal(t, tick(1), s.Now(), "discarding a disposed item must not move the clock")
}

func TestAdvanceTo(t *testing.T) {
	s := newScheduler()
	var list []stamped

	for _, at := range []tick{0, 1, 2, 10, 11} {
		s.ScheduleAbsolute(nil, at, record(s, &list, int(at)))
	}

	require.NoError(t, s.AdvanceTo(8))
	assert.Equal(t, tick(8), s.Now())
	assert.Equal(t, []stamped{{0, 0}, {1, 1}, {2, 2}}, list)

	require.NoError(t, s.AdvanceTo(8))
	assert.Equal(t, tick(8), s.Now())
	assert.Len(t, list, 3)

	s.ScheduleAbsolute(nil, 7, record(s, &list, 7))
	s.ScheduleAbsolute(nil, 8, record(s, &list, 8))
	assert.Equal(t, tick(8), s.Now())
	assert.Len(t, list, 3)

	require.NoError(t, s.AdvanceTo(10))
	assert.Equal(t, tick(10), s.Now())
	assert.Equal(t, []stamped{{0, 0}, {1, 1}, {2, 2}, {7, 8}, {8, 8}, {10, 10}}, list)

	require.NoError(t, s.AdvanceTo(100))
	assert.Equal(t, tick(100), s.Now())
	assert.Equal(t, []stamped{{0, 0}, {1, 1}, {2, 2}, {7, 8}, {8, 8}, {10, 10}, {11, 11}}, list)
}

func TestAdvanceToPast(t *testing.T) {
	s := New[tick, tick](10)
	ran := false
	s.ScheduleAbsolute(nil, 5, func(any) vclock.Disposable { ran = true; return nil })

	err := s.AdvanceTo(9)
	require.ErrorIs(t, err, ErrOutOfRange)
	var re *RangeError[tick]
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "advance to", re.Op)
	assert.Equal(t, tick(10), re.Clock)
	assert.Equal(t, tick(9), re.Target)

	assert.False(t, ran)
	assert.Equal(t, tick(10), s.Now())
}

func TestAdvanceBy(t *testing.T) {
	s := newScheduler()
	var list []stamped

	for _, at := range []tick{0, 1, 2, 10, 11} {
		s.ScheduleAbsolute(nil, at, record(s, &list, int(at)))
	}

	require.NoError(t, s.AdvanceBy(8))
	assert.Equal(t, tick(8), s.Now())
	assert.Equal(t, []stamped{{0, 0}, {1, 1}, {2, 2}}, list)

	s.ScheduleAbsolute(nil, 7, record(s, &list, 7))
	s.ScheduleAbsolute(nil, 8, record(s, &list, 8))

	require.NoError(t, s.AdvanceBy(0))
	assert.Equal(t, tick(8), s.Now())
	assert.Len(t, list, 3)

	require.NoError(t, s.AdvanceBy(2))
	assert.Equal(t, tick(10), s.Now())
	assert.Equal(t, []stamped{{0, 0}, {1, 1}, {2, 2}, {7, 8}, {8, 8}, {10, 10}}, list)

	require.NoError(t, s.AdvanceBy(90))
	assert.Equal(t, tick(100), s.Now())
	assert.Len(t, list, 7)

	require.ErrorIs(t, s.AdvanceBy(-1), ErrOutOfRange)
	assert.Equal(t, tick(100), s.Now())
}

func TestAdvanceToStoppedEarly(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 1, record(s, &list, 1))
	s.ScheduleAbsolute(nil, 2, func(any) vclock.Disposable { s.Stop(); return nil })
	s.ScheduleAbsolute(nil, 3, record(s, &list, 3))

	require.NoError(t, s.AdvanceTo(5))
	assert.Equal(t, tick(5), s.Now(), "clock still moves to the target after Stop")
	assert.Equal(t, []stamped{{1, 1}}, list)

	s.Start()
	assert.Equal(t, []stamped{{1, 1}, {3, 5}}, list)
}

func TestIsEnabled(t *testing.T) {
	s := newScheduler()
	assert.False(t, s.IsEnabled())

	var inside, afterStop bool
	s.Schedule(s, func(state any) vclock.Disposable {
		s := state.(*Scheduler[tick, tick])
		inside = s.IsEnabled()
		s.Stop()
		afterStop = s.IsEnabled()
		return nil
	})
	assert.False(t, s.IsEnabled())

	s.Start()

	assert.True(t, inside)
	assert.False(t, afterStop)
	assert.False(t, s.IsEnabled())
}

func TestNestedAdvanceIsNoop(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable {
		assert.NoError(t, s.AdvanceTo(50))
		assert.NoError(t, s.AdvanceBy(50))
		list = append(list, stamped{1, s.Now()})
		return nil
	})
	s.ScheduleAbsolute(nil, 2, record(s, &list, 2))

	require.NoError(t, s.AdvanceTo(3))
	assert.Equal(t, []stamped{{1, 1}, {2, 2}}, list)
	assert.Equal(t, tick(3), s.Now())
}

func TestScheduleFromAction(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 5, func(any) vclock.Disposable {
		list = append(list, stamped{5, s.Now()})
		s.ScheduleAbsolute(nil, 3, record(s, &list, 3))
		s.ScheduleRelative(nil, 2, record(s, &list, 7))
		s.ScheduleAbsolute(nil, 20, record(s, &list, 20))
		return nil
	})

	require.NoError(t, s.AdvanceTo(10))
	assert.Equal(t, []stamped{{5, 5}, {3, 5}, {7, 7}}, list, "past-due work runs at the current clock")
	assert.Equal(t, 1, s.Len())
}

func TestSleep(t *testing.T) {
	s := New[tick, tick](1000)

	require.NoError(t, s.Sleep(86400))
	assert.Equal(t, tick(87400), s.Clock())

	require.NoError(t, s.Sleep(0))
	assert.Equal(t, tick(87400), s.Clock())

	require.ErrorIs(t, s.Sleep(-1), ErrOutOfRange)
	assert.Equal(t, tick(87400), s.Clock())
}

func TestSleepSkipsQueue(t *testing.T) {
	s := newScheduler()
	var list []stamped
	s.ScheduleAbsolute(nil, 5, record(s, &list, 5))

	require.NoError(t, s.Sleep(10))
	assert.Empty(t, list)
	assert.Equal(t, tick(10), s.Now())

	s.Start()
	assert.Equal(t, []stamped{{5, 10}}, list)
}

func TestSleepInRecursiveAction(t *testing.T) {
	s := newScheduler()
	n := 0

	s.ScheduleRecursiveAbsolute(nil, s.Now()+6000, func(_ any, rec func(any, tick)) {
		require.NoError(t, s.Sleep(3*6000))
		n++
		rec(nil, s.Now()+6000)
	})

	require.NoError(t, s.AdvanceTo(s.Now()+5*6000))

	assert.Equal(t, 2, n)
	assert.Equal(t, tick(30000), s.Now())
}

func TestWithComparer(t *testing.T) {
	now := tick(1_000_000)
	s := New[tick, tick](now, WithComparer(vclock.Reverse(vclock.Natural[tick]())))
	var res []int

	s.ScheduleAbsolute(nil, now-1000, func(any) vclock.Disposable { res = append(res, 1); return nil })
	s.ScheduleAbsolute(nil, now-2000, func(any) vclock.Disposable { res = append(res, 2); return nil })

	s.Start()

	assert.Equal(t, []int{1, 2}, res)
	assert.Equal(t, now-2000, s.Now())

	// Moving "forward" means counting down under the reversed order.
	require.NoError(t, s.AdvanceBy(-10))
	require.ErrorIs(t, s.AdvanceBy(10), ErrOutOfRange)
	require.ErrorIs(t, s.Sleep(10), ErrOutOfRange)
}

func TestHandle(t *testing.T) {
	s := newScheduler()
	h := s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable { return nil })
	assert.True(t, h.Pending())
	assert.False(t, h.Disposed())

	s.Start()
	assert.False(t, h.Pending())

	h.Dispose()
	h.Dispose()
	assert.True(t, h.Disposed())
}

func TestHandleOwnsReturnedDisposable(t *testing.T) {
	s := newScheduler()
	disposed := 0
	inner := vclock.Once(func() { disposed++ })

	h := s.Schedule(nil, func(any) vclock.Disposable { return inner })
	s.Start()
	assert.Equal(t, 0, disposed)

	h.Dispose()
	h.Dispose()
	assert.Equal(t, 1, disposed)

	var self *Handle[tick]
	disposed = 0
	self = s.Schedule(nil, func(any) vclock.Disposable {
		self.Dispose()
		return vclock.DisposableFunc(func() { disposed++ })
	})
	s.Start()
	assert.Equal(t, 1, disposed, "returned disposable is released at once when the handle is already disposed")
}

func TestScheduleRecursive(t *testing.T) {
	s := newScheduler()
	var seen []int

	s.ScheduleRecursive(0, func(state any, reschedule func(any)) {
		n := state.(int)
		seen = append(seen, n)
		if n < 4 {
			reschedule(n + 1)
		}
	})

	s.Start()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, tick(0), s.Now())
}

func TestScheduleRecursiveRelativeDispose(t *testing.T) {
	s := newScheduler()
	var runs []tick

	h := s.ScheduleRecursiveRelative(nil, 10, func(_ any, reschedule func(any, tick)) {
		runs = append(runs, s.Now())
		reschedule(nil, 10)
	})
	s.ScheduleAbsolute(nil, 35, func(any) vclock.Disposable {
		h.Dispose()
		return nil
	})

	require.NoError(t, s.AdvanceTo(100))
	assert.Equal(t, []tick{10, 20, 30}, runs)
	assert.False(t, h.Pending())
	assert.Equal(t, 0, s.Len())
}

func TestSchedulePeriodic(t *testing.T) {
	s := newScheduler()
	var states []int

	h, err := s.SchedulePeriodic(0, 5, func(state any) any {
		n := state.(int)
		states = append(states, n)
		return n + 1
	})
	require.NoError(t, err)

	require.NoError(t, s.AdvanceTo(22))
	assert.Equal(t, []int{0, 1, 2, 3}, states)
	assert.True(t, h.Pending())

	h.Dispose()
	require.NoError(t, s.AdvanceTo(100))
	assert.Len(t, states, 4)

	_, err = s.SchedulePeriodic(nil, 0, func(state any) any { return state })
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestNextAt(t *testing.T) {
	s := newScheduler()
	_, ok := s.NextAt()
	assert.False(t, ok)

	h := s.ScheduleAbsolute(nil, 3, func(any) vclock.Disposable { return nil })
	s.ScheduleAbsolute(nil, 7, func(any) vclock.Disposable { return nil })

	when, ok := s.NextAt()
	require.True(t, ok)
	assert.Equal(t, tick(3), when)

	h.Dispose()
	when, ok = s.NextAt()
	require.True(t, ok)
	assert.Equal(t, tick(7), when)
	assert.Equal(t, 1, s.Len())
}

func TestPanicPropagates(t *testing.T) {
	s := newScheduler()
	var list []stamped

	s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable { panic("boom") })
	s.ScheduleAbsolute(nil, 2, record(s, &list, 2))

	assert.PanicsWithValue(t, "boom", s.Start)
	assert.False(t, s.IsEnabled())
	assert.Equal(t, tick(1), s.Now())
	assert.Empty(t, list)

	s.Start()
	assert.Equal(t, []stamped{{2, 2}}, list)
}

func TestWithRecover(t *testing.T) {
	type fault struct {
		value any
		due   tick
	}
	var faults []fault
	s := newScheduler(WithRecover(func(r any, due tick) {
		faults = append(faults, fault{r, due})
	}))
	var list []stamped

	s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable { panic("boom") })
	s.ScheduleAbsolute(nil, 2, record(s, &list, 2))

	require.NoError(t, s.AdvanceTo(3))
	assert.Equal(t, []fault{{"boom", 1}}, faults)
	assert.Equal(t, []stamped{{2, 2}}, list)
}

func TestWithTrace(t *testing.T) {
	var events []Event[tick]
	s := newScheduler(WithTrace(func(e Event[tick]) { events = append(events, e) }))

	h := s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable { return nil })
	s.ScheduleAbsolute(nil, 2, func(any) vclock.Disposable { return nil })
	h.Dispose()

	s.Start()

	require.Len(t, events, 2)
	assert.Equal(t, Skipped, events[0].Kind)
	assert.Equal(t, tick(1), events[0].Due)
	assert.Equal(t, tick(0), events[0].Clock)
	assert.Equal(t, Executed, events[1].Kind)
	assert.Equal(t, tick(2), events[1].Clock)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Equal(t, "skipped", Skipped.String())
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newScheduler(
		WithMetrics[tick](reg, "test"),
		WithRecover(func(any, tick) {}),
	)

	h := s.ScheduleAbsolute(nil, 1, func(any) vclock.Disposable { return nil })
	s.ScheduleAbsolute(nil, 2, func(any) vclock.Disposable { return nil })
	s.ScheduleAbsolute(nil, 3, func(any) vclock.Disposable { panic("boom") })
	s.ScheduleAbsolute(nil, 9, func(any) vclock.Disposable { return nil })
	h.Dispose()

	require.NoError(t, s.AdvanceTo(5))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			values[mf.GetName()] = c.GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"test_scheduler_scheduled_total": 4,
		"test_scheduler_executed_total":  1,
		"test_scheduler_cancelled_total": 1,
		"test_scheduler_recovered_total": 1,
		"test_scheduler_queue_depth":     1,
	}, values)
}

func TestSequenceAcrossSchedulers(t *testing.T) {
	var a, b []Event[tick]
	s1 := newScheduler(WithTrace(func(e Event[tick]) { a = append(a, e) }))
	s2 := newScheduler(WithTrace(func(e Event[tick]) { b = append(b, e) }))

	s1.Schedule(nil, func(any) vclock.Disposable { return nil })
	s2.Schedule(nil, func(any) vclock.Disposable { return nil })
	s1.Schedule(nil, func(any) vclock.Disposable { return nil })
	s1.Start()
	s2.Start()

	require.Len(t, a, 2)
	require.Len(t, b, 1)
	assert.Less(t, a[0].Seq, b[0].Seq)
	assert.Less(t, b[0].Seq, a[1].Seq)
}

func TestNilActionPanics(t *testing.T) {
	s := newScheduler()
	assert.Panics(t, func() { s.ScheduleAbsolute(nil, 0, nil) })
	assert.Panics(t, func() { s.ScheduleRecursiveAbsolute(nil, 0, nil) })
}

func BenchmarkScheduleAndDrain(b *testing.B) {
	s := newScheduler()
	noop := func(any) vclock.Disposable { return nil }
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.ScheduleRelative(nil, tick(i%64), noop)
		if i%64 == 63 {
			s.Start()
		}
	}
	s.Start()
}
