// Package events defines the canonical event model and the record validator.
//
// # Overview
//
// An Event is the atomic unit of analysis: a subject (user, session), an event
// name, a millisecond timestamp and a flat set of scalar properties. Events are
// immutable once constructed. Raw input arrives as a Record (a decoded JSON
// object) and is turned into an Event by the Validator, which either accepts
// the record unchanged or rejects it with a ValidationError.
//
// # Property Values
//
// Property values are a closed variant of four scalar kinds:
//
//	events.Null()
//	events.Bool(true)
//	events.Number(12.5) // integers are promoted to float64
//	events.String("pro")
//
// Nested objects and arrays are rejected with UnsupportedPropertyType; they are
// never flattened or serialized implicitly.
//
// # Usage Example
//
// Validate a record:
//
//	ev, err := events.Validate(events.Record{
//		"subject_id": "u1",
//		"event_name": "signup",
//		"timestamp":  int64(1700000000000),
//		"properties": map[string]any{"plan": "pro"},
//	})
//	var verr *events.ValidationError
//	if errors.As(err, &verr) {
//		fmt.Printf("%s: %s\n", verr.Kind, verr.Field)
//	}
//
// Build a canonical batch (sorted by timestamp, ties keep arrival order):
//
//	batch := events.NewBatch(evs)
//	for _, ev := range batch.All() {
//		fmt.Println(ev.Name())
//	}
//
// # Related Packages
//
//   - pkg/processor: Batch validation and transformation rules
//   - pkg/aggregation: Metric reducers over a Batch
//   - pkg/funnel: Conversion funnels over a Batch
package events
