package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies eventlens tracers and meters
const InstrumentationName = "github.com/platinummonkey/eventlens"

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// Engine metrics
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram

	// Processing metrics
	recordsTotal metric.Int64Counter
	batchSize    metric.Int64Histogram

	// Cache metrics
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	// Job metrics
	jobRunsTotal metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter(InstrumentationName))
}

// NewOTelMetricsWithMeter creates instruments on the given meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.operationsTotal, err = meter.Int64Counter(
		"eventlens.operations",
		metric.WithDescription("Total number of engine operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}

	m.operationDuration, err = meter.Float64Histogram(
		"eventlens.operation.duration",
		metric.WithDescription("Engine operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	m.recordsTotal, err = meter.Int64Counter(
		"eventlens.records",
		metric.WithDescription("Total number of raw records processed"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create records counter: %w", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"eventlens.batch.size",
		metric.WithDescription("Number of events in canonical batches"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch size histogram: %w", err)
	}

	m.cacheHitsTotal, err = meter.Int64Counter(
		"eventlens.cache.hits",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"eventlens.cache.misses",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	m.jobRunsTotal, err = meter.Int64Counter(
		"eventlens.job.runs",
		metric.WithDescription("Total number of job runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job runs counter: %w", err)
	}

	return m, nil
}

func errorAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("error", "true")
	}
	return attribute.String("error", "false")
}

// RecordOperation records an engine operation
func (m *OTelMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("eventlens.operation", operation),
		errorAttr(err),
	)
	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRecords records processing outcomes
func (m *OTelMetrics) RecordRecords(ctx context.Context, accepted, rejected, duplicates int) {
	outcomes := []struct {
		name  string
		count int
	}{
		{"accepted", accepted},
		{"rejected", rejected},
		{"duplicate", duplicates},
	}
	for _, o := range outcomes {
		if o.count > 0 {
			m.recordsTotal.Add(ctx, int64(o.count), metric.WithAttributes(attribute.String("eventlens.outcome", o.name)))
		}
	}
	m.batchSize.Record(ctx, int64(accepted))
}

// RecordCacheHit records a cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cacheType string) {
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.type", cacheType)))
}

// RecordCacheMiss records a cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cacheType string) {
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.type", cacheType)))
}

// RecordJobRun records a job run
func (m *OTelMetrics) RecordJobRun(ctx context.Context, trigger string, err error) {
	m.jobRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("eventlens.trigger", trigger),
		errorAttr(err),
	))
}
