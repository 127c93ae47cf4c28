package events

import (
	"fmt"
	"maps"
	"slices"
)

// Condition selects events by name and property equality
type Condition struct {
	// EventName must match exactly when set
	EventName string `yaml:"event_name" json:"event_name,omitempty"`
	// Where holds property equality predicates. A null predicate matches an
	// absent or null property.
	Where map[string]Value `yaml:"where" json:"where,omitempty"`
}

// Matches reports whether the event satisfies the condition
func (c Condition) Matches(ev Event) bool {
	if c.EventName != "" && ev.name != c.EventName {
		return false
	}
	for key, want := range c.Where {
		got, ok := ev.properties[key]
		if !ok {
			if !want.IsNull() {
				return false
			}
			continue
		}
		if !got.Equal(want) {
			return false
		}
	}
	return true
}

// String renders the condition for logs and labels
func (c Condition) String() string {
	if len(c.Where) == 0 {
		return c.EventName
	}
	s := c.EventName + "{"
	for i, key := range slices.Sorted(maps.Keys(c.Where)) {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%s", key, c.Where[key])
	}
	return s + "}"
}
