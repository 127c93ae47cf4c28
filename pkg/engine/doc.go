// Package engine is the in-process entry point to eventlens.
//
// # Overview
//
// The engine exposes the three analysis operations over plain data and a
// job runner that chains them:
//
//   - ProcessEvents: raw records to a canonical batch plus collected errors
//   - AggregateMetrics: metric specs evaluated over events
//   - ComputeFunnel: ordered step conversion over events
//   - Run: a job.Definition executed end to end, producing a job.Report
//
// Every call is pure with respect to its inputs: accumulators are allocated
// per call and discarded on return, so one Engine can serve concurrent
// callers. Each call opens an OpenTelemetry span, records Prometheus and
// OpenTelemetry metrics when configured and logs at debug level. None of
// this instrumentation affects results.
//
// # Usage Example
//
//	e := engine.New(engine.DefaultConfig(),
//		engine.WithLogger(logger),
//		engine.WithMetrics(metrics),
//	)
//
//	res, err := e.ProcessEvents(ctx, records, &processor.Config{Deduplicate: true})
//	if err != nil {
//		return err
//	}
//	for _, verr := range res.Errors {
//		logger.Warnf("rejected: %v", verr)
//	}
//
//	results, err := e.AggregateMetrics(ctx, res.Events.Events(), []aggregation.Spec{
//		{Name: "revenue", Reducer: aggregation.Sum, Field: "amount"},
//	})
//
//	fr, err := e.ComputeFunnel(ctx, res.Events.Events(), funnel.StepsFor("view", "signup", "purchase"), 0)
//
// # Related Packages
//
//   - pkg/processor: Validation and transformation
//   - pkg/aggregation: Reducers and grouping
//   - pkg/funnel: Funnel walking
//   - pkg/job: Job definitions and reports
package engine
