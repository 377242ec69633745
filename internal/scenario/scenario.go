// Package scenario describes timed events in a file and replays them on a
// historical scheduler, recording which events ran and when.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/noodlebox/vclock/historicaltime"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid scenario")

// Step operations.
const (
	OpStart     = "start"
	OpStop      = "stop"
	OpAdvanceTo = "advance_to"
	OpAdvanceBy = "advance_by"
	OpSleep     = "sleep"
)

// Scenario is the file format. Times are written as offsets from Start,
// using Go duration syntax ("90s", "-1h").
type Scenario struct {
	// Start is an RFC 3339 timestamp; empty means the Unix epoch.
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	// Reverse runs later instants first.
	Reverse bool    `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	Events  []Event `json:"events" yaml:"events"`
	// Steps drive the clock. Without steps the scenario is started once.
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Event is one scheduled action. Exactly one of At and Cron is set.
type Event struct {
	Label string `json:"label" yaml:"label"`
	At    string `json:"at,omitempty" yaml:"at,omitempty"`
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
	// Count limits how many times a cron event fires; zero is unlimited.
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	// What the action does after it is recorded, in this order.
	Sleep  string   `json:"sleep,omitempty" yaml:"sleep,omitempty"`
	Cancel []string `json:"cancel,omitempty" yaml:"cancel,omitempty"`
	Stop   bool     `json:"stop,omitempty" yaml:"stop,omitempty"`
	Start  bool     `json:"start,omitempty" yaml:"start,omitempty"`
}

// Step is one operation on the scheduler.
type Step struct {
	Op string `json:"op" yaml:"op"`
	At string `json:"at,omitempty" yaml:"at,omitempty"`
	By string `json:"by,omitempty" yaml:"by,omitempty"`
}

// Format names a scenario encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf picks the encoding from a file name's extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Decode(data, FormatOf(path))
}

// Decode parses and validates a scenario. Unknown fields are rejected.
func Decode(data []byte, format Format) (*Scenario, error) {
	var sc Scenario
	switch format {
	case YAML:
		if err := yaml.UnmarshalStrict(data, &sc); err != nil {
			return nil, fmt.Errorf("decode yaml scenario: %w", err)
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("decode json scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %q", format)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario without running it.
func (sc *Scenario) Validate() error {
	_, err := sc.compile()
	return err
}

type event struct {
	*Event
	at    time.Duration
	sleep time.Duration
	cron  bool
}

type step struct {
	Step
	at time.Duration
	by time.Duration
}

type plan struct {
	start  time.Time
	events []event
	steps  []step
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (sc *Scenario) compile() (*plan, error) {
	p := &plan{start: time.Unix(0, 0).UTC()}
	if sc.Start != "" {
		t, err := time.Parse(time.RFC3339, sc.Start)
		if err != nil {
			return nil, invalid("start: %v", err)
		}
		p.start = t
	}

	// forward reports whether d moves the clock forward (or not at all)
	// under the scenario's ordering.
	forward := func(d time.Duration) bool {
		if sc.Reverse {
			return d <= 0
		}
		return d >= 0
	}

	var unbounded string // label of a cron event without a count
	labels := make(map[string]bool, len(sc.Events))
	for i := range sc.Events {
		ev := &sc.Events[i]
		if ev.Label == "" {
			return nil, invalid("event %d has no label", i)
		}
		if labels[ev.Label] {
			return nil, invalid("duplicate event label %q", ev.Label)
		}
		labels[ev.Label] = true

		e := event{Event: ev}
		switch {
		case ev.Cron != "" && ev.At != "":
			return nil, invalid("event %q has both at and cron", ev.Label)
		case ev.Cron != "":
			if sc.Reverse {
				return nil, invalid("event %q: cron events need forward order", ev.Label)
			}
			if _, err := historicaltime.ParseCron(ev.Cron); err != nil {
				return nil, invalid("event %q: %v", ev.Label, err)
			}
			e.cron = true
		case ev.At != "":
			d, err := time.ParseDuration(ev.At)
			if err != nil {
				return nil, invalid("event %q at: %v", ev.Label, err)
			}
			e.at = d
		default:
			return nil, invalid("event %q has neither at nor cron", ev.Label)
		}
		if ev.Count < 0 || ev.Count > 0 && !e.cron {
			return nil, invalid("event %q: count needs a cron event and must not be negative", ev.Label)
		}
		if ev.Sleep != "" {
			d, err := time.ParseDuration(ev.Sleep)
			if err != nil {
				return nil, invalid("event %q sleep: %v", ev.Label, err)
			}
			if !forward(d) {
				return nil, invalid("event %q sleeps backward", ev.Label)
			}
			e.sleep = d
		}
		if e.cron && ev.Count == 0 && unbounded == "" {
			unbounded = ev.Label
		}
		p.events = append(p.events, e)
	}
	for _, ev := range sc.Events {
		for _, l := range ev.Cancel {
			if !labels[l] {
				return nil, invalid("event %q cancels unknown event %q", ev.Label, l)
			}
		}
	}

	for i, st := range sc.Steps {
		s := step{Step: st}
		var err error
		switch st.Op {
		case OpStart, OpStop:
		case OpAdvanceTo:
			if st.At == "" {
				return nil, invalid("step %d: %s needs at", i, st.Op)
			}
			s.at, err = time.ParseDuration(st.At)
		case OpAdvanceBy, OpSleep:
			if st.By == "" {
				return nil, invalid("step %d: %s needs by", i, st.Op)
			}
			s.by, err = time.ParseDuration(st.By)
		default:
			return nil, invalid("step %d: unknown op %q", i, st.Op)
		}
		if err != nil {
			return nil, invalid("step %d: %v", i, err)
		}
		p.steps = append(p.steps, s)
	}
	if len(p.steps) == 0 {
		p.steps = []step{{Step: Step{Op: OpStart}}}
	}
	// A start drains until the queue is empty, which an endless cron event
	// never lets happen.
	if unbounded != "" {
		for i, st := range p.steps {
			if st.Op == OpStart {
				return nil, invalid("step %d: start never ends with cron event %q; give it a count or use advance_to", i, unbounded)
			}
		}
	}
	return p, nil
}
