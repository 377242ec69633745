package scenario

import (
	"fmt"
	"time"

	"github.com/noodlebox/vclock"
	"github.com/noodlebox/vclock/historicaltime"
	"github.com/noodlebox/vclock/virtualtime"
)

// Entry records one event firing.
type Entry struct {
	Step   int           `json:"step"`
	Label  string        `json:"label"`
	Clock  time.Time     `json:"clock"`
	Offset time.Duration `json:"offset"`
}

// Result is the outcome of a replay.
type Result struct {
	Start   time.Time `json:"start"`
	Clock   time.Time `json:"clock"`
	Entries []Entry   `json:"entries"`
	// Skipped counts cancelled events discarded without running.
	Skipped int `json:"skipped"`
}

// Labels returns the label of every entry in firing order.
func (r *Result) Labels() []string {
	labels := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		labels[i] = e.Label
	}
	return labels
}

type replayer struct {
	s       *historicaltime.Scheduler
	res     *Result
	handles map[string]*historicaltime.Handle
	step    int
	err     error
}

// Replay schedules the scenario's events and runs its steps in order. If a
// step fails, the partial result is returned with an error naming the step.
func Replay(sc *Scenario, opts ...historicaltime.Option) (*Result, error) {
	p, err := sc.compile()
	if err != nil {
		return nil, err
	}

	res := &Result{Start: p.start}
	all := make([]historicaltime.Option, 0, len(opts)+2)
	all = append(all, opts...)
	all = append(all, virtualtime.WithTrace(func(e virtualtime.Event[time.Time]) {
		if e.Kind == virtualtime.Skipped {
			res.Skipped++
		}
	}))
	if sc.Reverse {
		all = append(all, historicaltime.WithReverseOrder())
	}

	r := &replayer{
		s:       historicaltime.New(p.start, all...),
		res:     res,
		handles: make(map[string]*historicaltime.Handle, len(p.events)),
	}
	for _, ev := range p.events {
		if err := r.schedule(ev); err != nil {
			return nil, err
		}
	}
	for i, st := range p.steps {
		r.step = i
		if err := r.run(st); err != nil {
			res.Clock = r.s.Now()
			return res, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
	}
	res.Clock = r.s.Now()
	return res, nil
}

func (r *replayer) schedule(ev event) error {
	if !ev.cron {
		r.handles[ev.Label] = r.s.ScheduleAbsolute(ev, r.res.Start.Add(ev.at), func(state any) vclock.Disposable {
			r.fire(state.(event))
			return nil
		})
		return nil
	}

	fired := 0
	h, err := r.s.ScheduleCron(ev, ev.Cron, func(state any) {
		ev := state.(event)
		fired++
		if ev.Count > 0 && fired >= ev.Count {
			r.handles[ev.Label].Dispose()
		}
		r.fire(ev)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", ev.Label, err)
	}
	r.handles[ev.Label] = h
	return nil
}

func (r *replayer) fire(ev event) {
	now := r.s.Now()
	r.res.Entries = append(r.res.Entries, Entry{
		Step:   r.step,
		Label:  ev.Label,
		Clock:  now,
		Offset: now.Sub(r.res.Start),
	})
	if ev.sleep != 0 {
		if err := r.s.Sleep(ev.sleep); err != nil && r.err == nil {
			r.err = fmt.Errorf("event %q: %w", ev.Label, err)
			r.s.Stop()
			return
		}
	}
	for _, l := range ev.Cancel {
		r.handles[l].Dispose()
	}
	if ev.Stop {
		r.s.Stop()
	}
	if ev.Start {
		r.s.Start()
	}
}

func (r *replayer) run(st step) error {
	var err error
	switch st.Op {
	case OpStart:
		r.s.Start()
	case OpStop:
		r.s.Stop()
	case OpAdvanceTo:
		err = r.s.AdvanceTo(r.res.Start.Add(st.at))
	case OpAdvanceBy:
		err = r.s.AdvanceBy(st.by)
	case OpSleep:
		err = r.s.Sleep(st.by)
	}
	if err == nil {
		err, r.err = r.err, nil
	}
	return err
}
