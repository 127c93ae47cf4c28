package funnel

import (
	"github.com/platinummonkey/eventlens/pkg/events"
)

// Step is one funnel stage. An event qualifies when its name matches
// EventName and every Where predicate holds.
type Step struct {
	// Name labels the step in results; defaults to the event name
	Name             string `yaml:"name" json:"name,omitempty"`
	events.Condition `yaml:",inline"`
}

// Label returns the display name of the step
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.EventName
}

// Spec is an ordered funnel definition
type Spec struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
	// Window is the maximum time, in timestamp units, between a subject's
	// step-0 event and any later step. Zero means no window.
	Window int64 `yaml:"window" json:"window,omitempty"`
}

// StepsFor builds steps that match on event name only
func StepsFor(names ...string) []Step {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Condition: events.Condition{EventName: name}}
	}
	return steps
}

// Validate checks the spec; index is its position in the request
func (s Spec) Validate(index int) error {
	if len(s.Steps) == 0 {
		return events.NewSpecError(s.Name, index, "funnel needs at least one step")
	}
	for i, step := range s.Steps {
		if step.EventName == "" {
			return events.NewSpecError(s.Name, index, "step %d has no event_name", i)
		}
	}
	if s.Window < 0 {
		return events.NewSpecError(s.Name, index, "window must be non-negative, got %d", s.Window)
	}
	return nil
}
