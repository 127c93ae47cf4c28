package aggregation

import (
	"slices"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// Group is one row of a metric result
type Group struct {
	// Key holds one value per group_by dimension; empty for the unit group
	Key   []events.Value `json:"key"`
	Value float64        `json:"value"`
}

// Result is the outcome of one Spec. Groups appear in first-seen order; a
// group with no data has no entry.
type Result struct {
	Name    string   `json:"name"`
	Reducer Reducer  `json:"reducer"`
	GroupBy []string `json:"group_by,omitempty"`
	Groups  []Group  `json:"groups"`
}

// Lookup returns the value of the group with the given key
func (r *Result) Lookup(key ...events.Value) (float64, bool) {
	for _, g := range r.Groups {
		if slices.EqualFunc(g.Key, key, events.Value.Equal) {
			return g.Value, true
		}
	}
	return 0, false
}

// Value returns the unit group value of an ungrouped result
func (r *Result) Value() (float64, bool) {
	return r.Lookup()
}
