// Package funnel computes conversion funnels over canonical event batches.
//
// # Overview
//
// A funnel is an ordered list of steps. Each subject carries a cursor that
// starts before step 0. Walking the batch in canonical order, an event that
// matches the step at the cursor advances it by one. Cursors never move
// backwards and a subject that completed the final step ignores further
// events. Subjects that never match step 0 are not part of the result.
//
// # Window
//
// With a window set, a later step only counts when its event happened at most
// Window after the subject's step-0 event. The window is always measured from
// step 0, never from the previous step. An out-of-window event leaves the
// cursor where it is, so a later in-window event can still advance it.
//
// # Ordering
//
// Events sharing a timestamp are walked in arrival order (the stable sort of
// events.NewBatch). Permuting same-timestamp events on input can therefore
// change a funnel result; aggregations are not affected.
//
// # Usage Example
//
//	res, err := funnel.Compute(batch, funnel.Spec{
//		Name:   "checkout",
//		Steps:  funnel.StepsFor("view", "signup", "purchase"),
//		Window: 7 * 24 * 3600 * 1000,
//	})
//	for _, step := range res.Steps {
//		fmt.Printf("%s: %d (%.0f%%)\n", step.Name, step.Count, step.ConversionRate*100)
//	}
//
// Large batches can be split across goroutines by subject:
//
//	res, err := funnel.ComputeSharded(ctx, batch, spec, runtime.GOMAXPROCS(0))
//
// # Related Packages
//
//   - pkg/events: Event model, Batch and Condition
//   - pkg/aggregation: Metric reducers over the same batches
package funnel
