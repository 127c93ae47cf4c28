package aggregation

import (
	"strings"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// Reducer names an aggregation function
type Reducer string

// Supported reducers
const (
	Count         Reducer = "count"
	Sum           Reducer = "sum"
	Average       Reducer = "average"
	Min           Reducer = "min"
	Max           Reducer = "max"
	DistinctCount Reducer = "distinct_count"
)

// Valid reports whether r is a known reducer
func (r Reducer) Valid() bool {
	switch r {
	case Count, Sum, Average, Min, Max, DistinctCount:
		return true
	}
	return false
}

// numeric reports whether the reducer folds numbers
func (r Reducer) numeric() bool {
	switch r {
	case Sum, Average, Min, Max:
		return true
	}
	return false
}

// Spec describes one reduction
type Spec struct {
	// Name identifies the metric in results and errors
	Name string `yaml:"name" json:"name"`
	// Reducer is the aggregation function
	Reducer Reducer `yaml:"reducer" json:"reducer"`
	// Field is a property key or one of subject_id, event_name, timestamp.
	// Required by every reducer except count, which ignores it.
	Field string `yaml:"field" json:"field,omitempty"`
	// GroupBy lists dimensions: property keys, subject_id, event_name,
	// timestamp or a time bucket (@hour, @day, @week, @month, @weekday,
	// @daypart). Empty means a single unit group.
	GroupBy []string `yaml:"group_by" json:"group_by,omitempty"`
	// Filter restricts the reduction to matching events
	Filter *events.Condition `yaml:"filter" json:"filter,omitempty"`
}

// Validate checks the spec; index is its position in the request
func (s Spec) Validate(index int) error {
	if s.Name == "" {
		return events.NewSpecError(s.Name, index, "name is required")
	}
	if !s.Reducer.Valid() {
		return events.NewSpecError(s.Name, index, "unknown reducer %q", s.Reducer)
	}

	if s.Reducer != Count {
		if s.Field == "" {
			return events.NewSpecError(s.Name, index, "field is required for %s", s.Reducer)
		}
		if strings.HasPrefix(s.Field, bucketPrefix) {
			return events.NewSpecError(s.Name, index, "time bucket %q can only be used in group_by", s.Field)
		}
		if s.Reducer.numeric() && (s.Field == events.FieldSubjectID || s.Field == events.FieldEventName) {
			return events.NewSpecError(s.Name, index, "%s requires a numeric field, %s is a string", s.Reducer, s.Field)
		}
	}

	for _, dim := range s.GroupBy {
		if dim == "" {
			return events.NewSpecError(s.Name, index, "group_by contains an empty dimension")
		}
		if strings.HasPrefix(dim, bucketPrefix) {
			if _, ok := buckets[dim]; !ok {
				return events.NewSpecError(s.Name, index, "unknown time bucket %q", dim)
			}
		}
	}
	return nil
}

// ValidateSpecs validates every spec and returns the first failure
func ValidateSpecs(specs []Spec) error {
	for i, s := range specs {
		if err := s.Validate(i); err != nil {
			return err
		}
	}
	return nil
}
