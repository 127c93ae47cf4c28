package events

import (
	"cmp"
	"iter"
	"slices"
)

// Batch is a canonical, read-only sequence of events ordered by timestamp.
// Events sharing a timestamp keep the order in which they were supplied.
type Batch struct {
	events []Event
}

// NewBatch copies and stably sorts events into a canonical batch
func NewBatch(evs []Event) Batch {
	sorted := slices.Clone(evs)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return cmp.Compare(a.timestamp, b.timestamp)
	})
	return Batch{events: sorted}
}

// Len returns the number of events
func (b Batch) Len() int { return len(b.events) }

// At returns the i-th event in canonical order
func (b Batch) At(i int) Event { return b.events[i] }

// Events returns a copy of the events in canonical order
func (b Batch) Events() []Event { return slices.Clone(b.events) }

// All iterates over the events in canonical order
func (b Batch) All() iter.Seq2[int, Event] {
	return func(yield func(int, Event) bool) {
		for i, ev := range b.events {
			if !yield(i, ev) {
				return
			}
		}
	}
}

// Records converts the batch back into raw records
func (b Batch) Records() []Record {
	out := make([]Record, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Record()
	}
	return out
}

// Equal reports whether two batches hold equal events in the same order
func (b Batch) Equal(o Batch) bool {
	return slices.EqualFunc(b.events, o.events, Event.Equal)
}
