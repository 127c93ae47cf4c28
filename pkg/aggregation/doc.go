// Package aggregation computes grouped reductions over canonical event batches.
//
// # Overview
//
// A Spec names a reducer, the field it reads and an optional list of group_by
// dimensions. For every event the aggregator builds the group key (one value
// per dimension, or the unit key) and folds the event into that group's
// accumulator, in canonical batch order. Each call allocates its own
// accumulators; nothing is shared between calls.
//
// # Reducers
//
//   - count: number of events in the group (field ignored)
//   - sum, average, min, max: events whose field is absent or non-numeric are
//     excluded; a group with no numeric values has no entry
//   - distinct_count: number of distinct field values, null included
//
// Results are always float64.
//
// # Dimensions
//
// A dimension is a property key, subject_id, event_name, timestamp or one of
// the UTC time buckets:
//
//	@hour     2024-03-01T14
//	@day      2024-03-01
//	@week     2024-W09
//	@month    2024-03
//	@weekday  friday
//	@daypart  morning | afternoon | evening | night
//
// An absent property groups as null.
//
// # Usage Example
//
//	specs := []aggregation.Spec{
//		{Name: "revenue", Reducer: aggregation.Sum, Field: "amount", GroupBy: []string{"plan"}},
//		{Name: "daily_users", Reducer: aggregation.DistinctCount, Field: "subject_id", GroupBy: []string{"@day"}},
//	}
//
//	agg := aggregation.New(&aggregation.Config{Workers: 4})
//	results, err := agg.Aggregate(ctx, batch, specs)
//	if errors.Is(err, events.ErrInvalidSpecification) {
//		// one spec is unusable; nothing was computed
//	}
//	revenue, ok := results[0].Lookup(events.String("pro"))
//
// # Related Packages
//
//   - pkg/events: Event model, Batch and Condition filters
//   - pkg/funnel: Conversion funnels over the same batches
package aggregation
