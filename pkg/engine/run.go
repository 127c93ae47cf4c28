package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/funnel"
	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// Run executes a job definition against raw records. The definition is
// validated before any record is processed. Metrics and funnels are computed
// concurrently over the same canonical batch; if any spec fails the run
// fails with that error.
func (e *Engine) Run(ctx context.Context, def *job.Definition, raw []events.Record) (report *job.Report, err error) {
	runID := uuid.NewString()
	started := e.now()
	ctx = observability.WithRunID(ctx, runID)
	if def.Name != "" {
		ctx = observability.WithJob(ctx, def.Name)
	}

	ctx, span, finish := e.begin(ctx, OpRun,
		attribute.String("eventlens.run_id", runID),
		attribute.String("eventlens.job", def.Name),
	)
	defer func() { finish(err) }()

	if err = def.Validate(); err != nil {
		return nil, err
	}

	processed, err := e.ProcessEvents(ctx, raw, def.Processing)
	if err != nil {
		return nil, err
	}

	metrics, funnels, err := e.analyze(ctx, processed.Events, def)
	if err != nil {
		return nil, err
	}

	report = &job.Report{
		RunID:      runID,
		Job:        def.Name,
		StartedAt:  started.UTC(),
		DurationMS: e.now().Sub(started).Milliseconds(),
		Records:    len(raw),
		Events:     processed.Events.Len(),
		Errors:     processed.Errors,
		Warnings:   processed.Warnings,
		Duplicates: processed.Duplicates,
		Metrics:    metrics,
		Funnels:    funnels,
	}
	span.SetAttributes(attribute.Int("eventlens.events", report.Events))

	e.log(ctx, OpRun).WithFields(map[string]interface{}{
		"events":   report.Events,
		"rejected": report.Rejected(),
		"metrics":  len(metrics),
		"funnels":  len(funnels),
		"duration": time.Duration(report.DurationMS) * time.Millisecond,
	}).Info("Job run complete")
	return report, nil
}

func (e *Engine) analyze(ctx context.Context, batch events.Batch, def *job.Definition) ([]*aggregation.Result, []*funnel.Result, error) {
	var metrics []*aggregation.Result
	funnels := make([]*funnel.Result, len(def.Funnels))

	eg, ctx := errgroup.WithContext(ctx)

	if len(def.Metrics) > 0 {
		eg.Go(func() (err error) {
			defer func() {
				if rerr := observability.MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()
			metrics, err = e.aggregate(ctx, batch, def.Metrics)
			return err
		})
	}

	for i, spec := range def.Funnels {
		eg.Go(func() (err error) {
			defer func() {
				if rerr := observability.MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()
			res, err := e.funnel(ctx, batch, spec)
			if err != nil {
				return err
			}
			funnels[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return metrics, funnels, nil
}
