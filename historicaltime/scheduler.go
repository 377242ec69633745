package historicaltime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/noodlebox/vclock"
	"github.com/noodlebox/vclock/virtualtime"
)

// See [time.Time].
type Time = time.Time

// See [time.Duration].
type Duration = time.Duration

// Handle is a [virtualtime.Handle] over [Time].
type Handle = virtualtime.Handle[Time]

// Option is a [virtualtime.Option] over [Time].
type Option = virtualtime.Option[Time]

// Scheduler is a virtual-time scheduler whose clock is a [time.Time].
type Scheduler struct {
	*virtualtime.Scheduler[Time, Duration]
}

// New returns a stopped Scheduler with its clock at at.
func New(at Time, opts ...Option) *Scheduler {
	return &Scheduler{virtualtime.New[Time, Duration](at, opts...)}
}

// WithReverseOrder runs later instants first. Under it, moving the clock
// "forward" means moving it toward the past.
func WithReverseOrder() Option {
	return virtualtime.WithComparer(vclock.Reverse(vclock.Natural[Time]()))
}

// FromUnixMilli returns the UTC instant ms milliseconds after the Unix
// epoch.
func FromUnixMilli(ms int64) Time {
	return time.UnixMilli(ms).UTC()
}

// UnixMilli returns the clock as milliseconds since the Unix epoch.
func (s *Scheduler) UnixMilli() int64 {
	return s.Now().UnixMilli()
}

// Since returns the virtual time elapsed since t.
func (s *Scheduler) Since(t Time) Duration {
	return s.Now().Sub(t)
}

// Until returns the virtual time remaining until t.
func (s *Scheduler) Until(t Time) Duration {
	return t.Sub(s.Now())
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a five-field cron expression or a descriptor such as
// "@hourly" or "@every 90s".
func ParseCron(spec string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	return sched, nil
}

// ScheduleCron runs action at every activation of the cron expression spec
// after the current clock, as measured on the virtual clock. Each activation
// is computed from the clock when the previous one finishes, so an action
// that sleeps past an activation skips it.
func (s *Scheduler) ScheduleCron(state any, spec string, action func(state any)) (*Handle, error) {
	sched, err := ParseCron(spec)
	if err != nil {
		return nil, err
	}
	return s.ScheduleCronSchedule(state, sched, action)
}

// ScheduleCronSchedule is ScheduleCron for an already parsed schedule. Cron
// activations always lie later in real time, so a scheduler whose ordering
// does not treat them as ahead of the clock (see [WithReverseOrder]) gets an
// error wrapping [virtualtime.ErrOutOfRange]. An activation that is not
// ahead of the clock when a run finishes ends the recurrence.
func (s *Scheduler) ScheduleCronSchedule(state any, sched cron.Schedule, action func(state any)) (*Handle, error) {
	now := s.Now()
	first := sched.Next(now)
	if first.IsZero() {
		return nil, fmt.Errorf("cron schedule has no activation after %s", now.Format(time.RFC3339))
	}
	if s.Compare(first, now) <= 0 {
		return nil, fmt.Errorf("cron schedule: %w", &virtualtime.RangeError[Time]{Op: "schedule cron", Clock: now, Target: first})
	}
	return s.ScheduleRecursiveAbsolute(state, first, func(state any, reschedule func(any, Time)) {
		action(state)
		now := s.Now()
		if next := sched.Next(now); !next.IsZero() && s.Compare(next, now) > 0 {
			reschedule(state, next)
		}
	}), nil
}
