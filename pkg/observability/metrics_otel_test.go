package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeter creates instruments on a private provider with a manual reader
func setupTestMeter(t *testing.T) (*OTelMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	m, err := NewOTelMetricsWithMeter(provider.Meter(InstrumentationName))
	require.NoError(t, err)
	return m, reader
}

// sumOf returns the total of an int64 sum instrument
func sumOf(t *testing.T, reader *metric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNewOTelMetrics(t *testing.T) {
	m, err := NewOTelMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.operationsTotal)
	assert.NotNil(t, m.operationDuration)
	assert.NotNil(t, m.recordsTotal)
	assert.NotNil(t, m.batchSize)
	assert.NotNil(t, m.cacheHitsTotal)
	assert.NotNil(t, m.cacheMissesTotal)
	assert.NotNil(t, m.jobRunsTotal)
}

func TestOTelMetrics_RecordOperation(t *testing.T) {
	m, reader := setupTestMeter(t)
	ctx := context.Background()

	m.RecordOperation(ctx, "aggregate", 5*time.Millisecond, nil)
	m.RecordOperation(ctx, "aggregate", time.Millisecond, errors.New("bad spec"))
	m.RecordOperation(ctx, "funnel", 2*time.Millisecond, nil)

	assert.Equal(t, int64(3), sumOf(t, reader, "eventlens.operations"))
}

func TestOTelMetrics_RecordRecords(t *testing.T) {
	m, reader := setupTestMeter(t)

	m.RecordRecords(context.Background(), 10, 2, 1)
	m.RecordRecords(context.Background(), 0, 0, 0)

	assert.Equal(t, int64(13), sumOf(t, reader, "eventlens.records"))
}

func TestOTelMetrics_CacheAndJobs(t *testing.T) {
	m, reader := setupTestMeter(t)
	ctx := context.Background()

	m.RecordCacheHit(ctx, "batch")
	m.RecordCacheHit(ctx, "batch")
	m.RecordCacheMiss(ctx, "batch")
	m.RecordJobRun(ctx, "watch", nil)
	m.RecordJobRun(ctx, "schedule", errors.New("input missing"))

	assert.Equal(t, int64(2), sumOf(t, reader, "eventlens.cache.hits"))
	assert.Equal(t, int64(1), sumOf(t, reader, "eventlens.cache.misses"))
	assert.Equal(t, int64(2), sumOf(t, reader, "eventlens.job.runs"))
}
