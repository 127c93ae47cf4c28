package engine

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/funnel"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/processor"
)

// Operation names used for spans, metrics and logs
const (
	OpProcess   = "process"
	OpAggregate = "aggregate"
	OpFunnel    = "funnel"
	OpRun       = "run"
)

// Config defines engine parallelism
type Config struct {
	// ProcessWorkers is used when a processing config leaves Workers unset
	ProcessWorkers int
	// AggregationWorkers bounds the number of metric specs evaluated at once
	AggregationWorkers int
	// FunnelShards partitions subjects for funnel computation. Values below 2
	// walk the batch sequentially.
	FunnelShards int
}

// DefaultConfig returns default engine settings
func DefaultConfig() *Config {
	return &Config{
		ProcessWorkers:     1,
		AggregationWorkers: runtime.GOMAXPROCS(0),
		FunnelShards:       1,
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records Prometheus metrics for every call
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithOTelMetrics records OpenTelemetry metrics for every call
func WithOTelMetrics(metrics *observability.OTelMetrics) Option {
	return func(e *Engine) { e.otelMetrics = metrics }
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(observability.InstrumentationName)
		}
	}
}

// WithClock overrides the clock used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine is the library entry point. It holds no per-call state, so one
// Engine may serve concurrent calls.
type Engine struct {
	config      *Config
	aggregator  *aggregation.Aggregator
	logger      *observability.Logger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
	tracer      trace.Tracer
	now         func() time.Time
}

// New creates a new engine
func New(config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		config:     config,
		aggregator: aggregation.New(&aggregation.Config{Workers: config.AggregationWorkers}),
		logger:     observability.NopLogger(),
		tracer:     observability.Tracer(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessEvents validates and transforms raw records into a canonical batch.
// Rejected records are reported in the result, never as an error; the error
// is only set when ctx is cancelled.
func (e *Engine) ProcessEvents(ctx context.Context, raw []events.Record, config *processor.Config) (res *processor.Result, err error) {
	ctx, span, finish := e.begin(ctx, OpProcess, attribute.Int("eventlens.records", len(raw)))
	defer func() { finish(err) }()

	cfg := e.processingConfig(config)
	res, err = processor.New(cfg).ProcessContext(ctx, raw)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("eventlens.events", res.Events.Len()),
		attribute.Int("eventlens.rejected", len(res.Errors)),
		attribute.Int("eventlens.duplicates", res.Duplicates),
	)
	if e.metrics != nil {
		e.metrics.ObserveRecords(res.Events.Len(), len(res.Errors), res.Duplicates, len(res.Warnings))
	}
	if e.otelMetrics != nil {
		e.otelMetrics.RecordRecords(ctx, res.Events.Len(), len(res.Errors), res.Duplicates)
	}

	e.log(ctx, OpProcess).WithFields(map[string]interface{}{
		"records":    len(raw),
		"events":     res.Events.Len(),
		"rejected":   len(res.Errors),
		"warnings":   len(res.Warnings),
		"duplicates": res.Duplicates,
	}).Debug("Processed batch")
	return res, nil
}

// AggregateMetrics evaluates every spec over evs. The events are put in
// canonical order first, so any slice of valid events may be passed.
func (e *Engine) AggregateMetrics(ctx context.Context, evs []events.Event, specs []aggregation.Spec) ([]*aggregation.Result, error) {
	return e.aggregate(ctx, events.NewBatch(evs), specs)
}

func (e *Engine) aggregate(ctx context.Context, batch events.Batch, specs []aggregation.Spec) (results []*aggregation.Result, err error) {
	ctx, _, finish := e.begin(ctx, OpAggregate,
		attribute.Int("eventlens.events", batch.Len()),
		attribute.Int("eventlens.specs", len(specs)),
	)
	defer func() { finish(err) }()

	results, err = e.aggregator.Aggregate(ctx, batch, specs)
	if err != nil {
		return nil, err
	}

	logger := e.log(ctx, OpAggregate)
	for _, r := range results {
		if e.metrics != nil {
			e.metrics.MetricGroups.WithLabelValues(r.Name).Set(float64(len(r.Groups)))
		}
		logger.WithFields(map[string]interface{}{
			"metric":  r.Name,
			"reducer": string(r.Reducer),
			"groups":  len(r.Groups),
		}).Debug("Computed metric")
	}
	return results, nil
}

// ComputeFunnel counts distinct subjects reaching each step. A window of 0
// means no window.
func (e *Engine) ComputeFunnel(ctx context.Context, evs []events.Event, steps []funnel.Step, window int64) (*funnel.Result, error) {
	return e.funnel(ctx, events.NewBatch(evs), funnel.Spec{Steps: steps, Window: window})
}

// ComputeFunnelSpec is ComputeFunnel for a named spec over a canonical batch
func (e *Engine) ComputeFunnelSpec(ctx context.Context, batch events.Batch, spec funnel.Spec) (*funnel.Result, error) {
	return e.funnel(ctx, batch, spec)
}

func (e *Engine) funnel(ctx context.Context, batch events.Batch, spec funnel.Spec) (res *funnel.Result, err error) {
	ctx, span, finish := e.begin(ctx, OpFunnel,
		attribute.String("eventlens.funnel", spec.Name),
		attribute.Int("eventlens.steps", len(spec.Steps)),
		attribute.Int64("eventlens.window", spec.Window),
	)
	defer func() { finish(err) }()

	res, err = funnel.ComputeSharded(ctx, batch, spec, e.config.FunnelShards)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("eventlens.entered", res.Entered),
		attribute.Int("eventlens.completed", res.Completed),
	)
	if e.metrics != nil && spec.Name != "" {
		for _, s := range res.Steps {
			e.metrics.FunnelStepSubjects.WithLabelValues(spec.Name, s.Name).Set(float64(s.Count))
		}
		e.metrics.FunnelConversion.WithLabelValues(spec.Name).Set(res.ConversionRate())
	}

	e.log(ctx, OpFunnel).WithFields(map[string]interface{}{
		"funnel":    spec.Name,
		"entered":   res.Entered,
		"completed": res.Completed,
	}).Debug("Computed funnel")
	return res, nil
}

// processingConfig fills in engine defaults the caller left unset. A nil
// config means the processor defaults.
func (e *Engine) processingConfig(config *processor.Config) *processor.Config {
	var cp processor.Config
	if config != nil {
		cp = *config
	}
	if cp.Workers == 0 {
		cp.Workers = e.config.ProcessWorkers
	}
	return &cp
}

// begin opens a span for op and returns a function that closes it and
// records the outcome
func (e *Engine) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "eventlens."+op, trace.WithAttributes(attrs...))

	return ctx, span, func(err error) {
		defer span.End()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.log(ctx, op).WithError(err).Debug("Operation failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if e.metrics != nil {
			e.metrics.ObserveOperation(op, start, err)
			if errors.Is(err, events.ErrInvalidSpecification) {
				e.metrics.SpecErrorsTotal.WithLabelValues(op).Inc()
			}
		}
		if e.otelMetrics != nil {
			e.otelMetrics.RecordOperation(ctx, op, time.Since(start), err)
		}
	}
}

func (e *Engine) log(ctx context.Context, op string) *observability.Logger {
	logger := observability.UpdateLoggerWithTraceContext(ctx, e.logger).WithField("operation", op)
	if runID := observability.GetRunID(ctx); runID != "" {
		logger = logger.WithField("run_id", runID)
	}
	if job := observability.GetJob(ctx); job != "" {
		logger = logger.WithField("job", job)
	}
	return logger
}
