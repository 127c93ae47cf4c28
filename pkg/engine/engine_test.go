package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/funnel"
	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/processor"
)

// testEngine returns an engine wired to a span recorder and a private registry
func testEngine(t *testing.T, config *Config, opts ...Option) (*Engine, *tracetest.SpanRecorder, *observability.Metrics) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithTracerProvider(tp), WithMetrics(metrics)}, opts...)
	return New(config, opts...), sr, metrics
}

func spanNamed(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no span named %q", name)
	return nil
}

func rec(subject any, name string, ts int64, props map[string]any) events.Record {
	r := events.Record{"subject_id": subject, "event_name": name, "timestamp": ts}
	if props != nil {
		r["properties"] = props
	}
	return r
}

func TestEngine_ProcessEvents(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)

	raw := []events.Record{
		rec("u2", "view", 200, nil),
		rec("u1", "view", 100, map[string]any{"plan": "pro"}),
		{"subject_id": "u3", "event_name": "view"},
		rec("u1", "view", 100, map[string]any{"plan": "pro"}),
	}

	res, err := e.ProcessEvents(context.Background(), raw, &processor.Config{Deduplicate: true})
	require.NoError(t, err)

	require.Equal(t, 2, res.Events.Len())
	assert.Equal(t, "u1", res.Events.At(0).SubjectID())
	assert.Equal(t, "u2", res.Events.At(1).SubjectID())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Index)
	assert.Equal(t, events.MissingField, res.Errors[0].Kind)
	assert.Equal(t, 1, res.Duplicates)

	span := spanNamed(t, sr, "eventlens.process")
	assert.Equal(t, codes.Ok, span.Status().Code)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpProcess, "success")))
}

func TestEngine_ProcessEvents_Idempotent(t *testing.T) {
	e := New(nil)
	ctx := context.Background()

	raw := []events.Record{
		rec("u1", "purchase", 300, map[string]any{"amount": 10, "coupon": nil}),
		rec(42, "view", 100, map[string]any{"ok": true}),
		rec("u2", "view", 100, nil),
	}

	first, err := e.ProcessEvents(ctx, raw, nil)
	require.NoError(t, err)
	second, err := e.ProcessEvents(ctx, first.Events.Records(), nil)
	require.NoError(t, err)

	assert.True(t, first.Events.Equal(second.Events))
	assert.Empty(t, second.Errors)
}

func TestEngine_ProcessEvents_Cancelled(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ProcessEvents(ctx, []events.Record{rec("u1", "a", 1, nil)}, nil)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, codes.Error, spanNamed(t, sr, "eventlens.process").Status().Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpProcess, "error")))
}

func TestEngine_AggregateMetrics(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)

	evs := []events.Event{
		events.MustNew("u2", "purchase", 300, map[string]events.Value{"amount": events.Number(5)}),
		events.MustNew("u1", "purchase", 100, map[string]events.Value{"amount": events.Number(10)}),
		events.MustNew("u1", "purchase", 200, map[string]events.Value{"amount": events.String("bad")}),
	}
	specs := []aggregation.Spec{
		{Name: "revenue", Reducer: aggregation.Sum, Field: "amount"},
		{Name: "buyers", Reducer: aggregation.DistinctCount, Field: events.FieldSubjectID},
	}

	results, err := e.AggregateMetrics(context.Background(), evs, specs)
	require.NoError(t, err)
	require.Len(t, results, 2)

	revenue, ok := results[0].Value()
	require.True(t, ok)
	assert.Equal(t, 15.0, revenue)

	buyers, ok := results[1].Value()
	require.True(t, ok)
	assert.Equal(t, 2.0, buyers)

	span := spanNamed(t, sr, "eventlens.aggregate")
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MetricGroups.WithLabelValues("revenue")))
}

func TestEngine_AggregateMetrics_InvalidSpec(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)

	_, err := e.AggregateMetrics(context.Background(), nil, []aggregation.Spec{
		{Name: "ok", Reducer: aggregation.Count},
		{Name: "bad", Reducer: aggregation.Sum},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, events.ErrInvalidSpecification)

	var serr *events.SpecError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "bad", serr.Spec)
	assert.Equal(t, 1, serr.Index)

	span := spanNamed(t, sr, "eventlens.aggregate")
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpecErrorsTotal.WithLabelValues(OpAggregate)))
}

func TestEngine_ComputeFunnel(t *testing.T) {
	evs := []events.Event{
		events.MustNew("u1", "purchase", 300, nil),
		events.MustNew("u1", "view", 100, nil),
		events.MustNew("u1", "signup", 150, nil),
	}
	steps := funnel.StepsFor("view", "signup", "purchase")

	tests := []struct {
		name   string
		window int64
		want   []int
	}{
		{"no window", 0, []int{1, 1, 1}},
		{"window excludes purchase", 100, []int{1, 1, 0}},
	}

	for _, shards := range []int{1, 4} {
		e := New(&Config{FunnelShards: shards, AggregationWorkers: 1})
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := e.ComputeFunnel(context.Background(), evs, steps, tt.window)
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Counts())
			})
		}
	}
}

func TestEngine_ComputeFunnel_Metrics(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)

	batch := events.NewBatch([]events.Event{
		events.MustNew("u1", "view", 1, nil),
		events.MustNew("u2", "view", 2, nil),
		events.MustNew("u1", "purchase", 3, nil),
	})
	spec := funnel.Spec{Name: "checkout", Steps: funnel.StepsFor("view", "purchase")}

	res, err := e.ComputeFunnelSpec(context.Background(), batch, spec)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, res.Counts())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FunnelStepSubjects.WithLabelValues("checkout", "view")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FunnelStepSubjects.WithLabelValues("checkout", "purchase")))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.FunnelConversion.WithLabelValues("checkout")))
	assert.NotNil(t, spanNamed(t, sr, "eventlens.funnel"))
}

func TestEngine_ComputeFunnel_InvalidSteps(t *testing.T) {
	e := New(nil)
	_, err := e.ComputeFunnel(context.Background(), nil, nil, 0)
	assert.ErrorIs(t, err, events.ErrInvalidSpecification)

	_, err = e.ComputeFunnel(context.Background(), nil, funnel.StepsFor("a"), -5)
	assert.ErrorIs(t, err, events.ErrInvalidSpecification)
}

const runJob = `
name: checkout
processing:
  rename_map: {amt: amount}
  coerce: {amount: number}
metrics:
  - name: revenue
    reducer: sum
    field: amount
  - name: purchases_by_day
    reducer: count
    group_by: ["@day"]
    filter: {event_name: purchase}
funnels:
  - name: checkout
    steps:
      - event_name: view
      - event_name: purchase
`

func TestEngine_Run(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	e, sr, _ := testEngine(t, &Config{ProcessWorkers: 1, AggregationWorkers: 2, FunnelShards: 2},
		WithClock(func() time.Time { return started }))

	def, err := job.Parse(strings.NewReader(runJob))
	require.NoError(t, err)

	day := started.UnixMilli()
	raw := []events.Record{
		rec("u1", "view", day, nil),
		rec("u1", "purchase", day+10, map[string]any{"amt": "12.5"}),
		rec("u2", "view", day+20, nil),
		rec("u2", "purchase", day+30, map[string]any{"amt": "oops"}),
		{"event_name": "view", "timestamp": day},
	}

	report, err := e.Run(context.Background(), def, raw)
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "checkout", report.Job)
	assert.Equal(t, started, report.StartedAt)
	assert.Equal(t, 5, report.Records)
	assert.Equal(t, 3, report.Events)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 3, report.Errors[0].Index)
	assert.Equal(t, events.InvalidType, report.Errors[0].Kind)
	assert.Equal(t, 4, report.Errors[1].Index)
	assert.Equal(t, events.MissingField, report.Errors[1].Kind)

	require.Len(t, report.Metrics, 2)
	revenue, ok := report.Metrics[0].Value()
	require.True(t, ok)
	assert.Equal(t, 12.5, revenue)
	purchases, ok := report.Metrics[1].Lookup(events.String("2024-03-01"))
	require.True(t, ok)
	assert.Equal(t, 1.0, purchases)

	require.Len(t, report.Funnels, 1)
	assert.Equal(t, []int{2, 1}, report.Funnels[0].Counts())

	// every span of the run belongs to one trace rooted at the run span
	root := spanNamed(t, sr, "eventlens.run")
	for _, name := range []string{"eventlens.process", "eventlens.aggregate", "eventlens.funnel"} {
		s := spanNamed(t, sr, name)
		assert.Equal(t, root.SpanContext().TraceID(), s.SpanContext().TraceID(), name)
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), name)
	}
}

func TestEngine_Run_InvalidDefinition(t *testing.T) {
	e, sr, metrics := testEngine(t, nil)
	def := &job.Definition{
		Funnels: []funnel.Spec{{Name: "empty"}},
	}

	_, err := e.Run(context.Background(), def, []events.Record{rec("u1", "a", 1, nil)})
	require.ErrorIs(t, err, events.ErrInvalidSpecification)

	assert.Equal(t, codes.Error, spanNamed(t, sr, "eventlens.run").Status().Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SpecErrorsTotal.WithLabelValues(OpRun)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.RecordsTotal.WithLabelValues("accepted")))
}

func TestEngine_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	e := New(nil, WithLogger(observability.NewLogger(observability.DebugLevel, &buf)))

	ctx := observability.WithRunID(context.Background(), "run-1")
	_, err := e.ProcessEvents(ctx, []events.Record{rec("u1", "a", 1, nil)}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Processed batch"`)
	assert.Contains(t, out, `"operation":"process"`)
	assert.Contains(t, out, `"run_id":"run-1"`)
}

func TestEngine_OTelMetrics(t *testing.T) {
	otelMetrics, err := observability.NewOTelMetrics()
	require.NoError(t, err)

	e := New(nil, WithOTelMetrics(otelMetrics), WithLogger(nil), WithTracerProvider(nil), WithClock(nil))
	_, err = e.AggregateMetrics(context.Background(), nil, []aggregation.Spec{{Name: "n", Reducer: aggregation.Count}})
	assert.NoError(t, err)
}
