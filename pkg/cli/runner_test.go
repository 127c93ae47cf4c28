package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
	"github.com/platinummonkey/eventlens/pkg/store"
)

func TestContentKey(t *testing.T) {
	base := contentKey([]byte("job"), []byte("input"))

	assert.Equal(t, base, contentKey([]byte("job"), []byte("input")))
	assert.NotEqual(t, base, contentKey([]byte("job"), []byte("input2")))
	assert.NotEqual(t, base, contentKey([]byte("jobi"), []byte("nput")))
}

func TestJobRunner_Cache(t *testing.T) {
	env := testEnvironment(t, nil)
	dir := t.TempDir()
	opts := runOptions{
		job:   writeFile(t, dir, "job.yaml", testJob),
		input: writeFile(t, dir, "events.ndjson", testRecords),
		out:   filepath.Join(dir, "report.json"),
	}
	health := observability.NewHealthChecker("test")
	runner := newJobRunner(env, opts, health)
	ctx := context.Background()

	first, cached, err := runner.run(ctx, triggerManual)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.FileExists(t, opts.out)

	second, cached, err := runner.run(ctx, triggerManual)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Same(t, first, second)

	// a changed input is a new key
	writeFile(t, dir, "events.ndjson", testRecords+`{"subject_id": "u3", "event_name": "view", "timestamp": 3000}`+"\n")
	third, cached, err := runner.run(ctx, triggerWatch)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.Equal(t, 4, third.Events)

	m := env.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues(reportCacheType)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues(reportCacheType)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(triggerManual, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRunsTotal.WithLabelValues(triggerWatch, "success")))
	assert.Positive(t, testutil.ToFloat64(m.LastRunTimestamp))

	status := health.Check()
	assert.Equal(t, observability.StatusHealthy, status.Status)
	assert.Equal(t, 3, status.Runs)
}

func TestJobRunner_Eviction(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Size = 1
	env := testEnvironment(t, cfg)
	dir := t.TempDir()
	opts := runOptions{
		job:   writeFile(t, dir, "job.yaml", testJob),
		input: writeFile(t, dir, "events.ndjson", testRecords),
		out:   filepath.Join(dir, "report.json"),
	}
	runner := newJobRunner(env, opts, nil)
	ctx := context.Background()

	_, _, err := runner.run(ctx, triggerManual)
	require.NoError(t, err)
	writeFile(t, dir, "events.ndjson", "")
	_, _, err = runner.run(ctx, triggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CacheEvictionsTotal.WithLabelValues(reportCacheType)))
}

func TestJobRunner_Failure(t *testing.T) {
	env := testEnvironment(t, nil)
	dir := t.TempDir()
	opts := runOptions{
		job:   writeFile(t, dir, "job.yaml", "metrics:\n  - name: revenue\n    reducer: sum\n"),
		input: writeFile(t, dir, "events.ndjson", testRecords),
		out:   filepath.Join(dir, "report.json"),
	}
	health := observability.NewHealthChecker("test")
	runner := newJobRunner(env, opts, health)

	_, _, err := runner.run(context.Background(), triggerSchedule)
	require.Error(t, err)
	assert.NoFileExists(t, opts.out)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.JobRunsTotal.WithLabelValues(triggerSchedule, "error")))
	status := health.Check()
	assert.Equal(t, observability.StatusDegraded, status.Status)
	assert.NotEmpty(t, status.LastError)

	// trigger logs instead of failing
	runner.trigger(context.Background(), triggerSchedule)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.JobRunsTotal.WithLabelValues(triggerSchedule, "error")))
}

// flakyStore fails its first saves
type flakyStore struct {
	store.Store
	failures int
}

func (f *flakyStore) Save(ctx context.Context, report *job.Report) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	return f.Store.Save(ctx, report)
}

func TestJobRunner_Publish(t *testing.T) {
	env := testEnvironment(t, nil)
	dir := t.TempDir()
	backend, err := store.NewFileStore(filepath.Join(dir, "reports"), 5)
	require.NoError(t, err)
	env.reports = &flakyStore{Store: backend, failures: 1}

	opts := runOptions{
		job:   writeFile(t, dir, "job.yaml", testJob),
		input: writeFile(t, dir, "events.ndjson", testRecords),
		out:   filepath.Join(dir, "report.json"),
	}
	health := observability.NewHealthChecker("test")
	runner := newJobRunner(env, opts, health)
	ctx := context.Background()

	_, _, err = runner.run(ctx, triggerSchedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish report")
	assert.Equal(t, observability.StatusDegraded, health.Check().Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.OperationsTotal.WithLabelValues("publish", "error")))

	// the failed report was not cached, so the retry publishes
	report, cached, err := runner.run(ctx, triggerSchedule)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.OperationsTotal.WithLabelValues("publish", "success")))

	latest, err := backend.Latest(ctx, "checkout")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, latest.RunID)
}

// panickingStore panics on save
type panickingStore struct {
	store.Store
}

func (panickingStore) Save(context.Context, *job.Report) error {
	panic("store connection is nil")
}

func (panickingStore) Close() error { return nil }

func TestJobRunner_PanicIsRecovered(t *testing.T) {
	env := testEnvironment(t, nil)
	dir := t.TempDir()
	env.reports = panickingStore{}

	opts := runOptions{
		job:   writeFile(t, dir, "job.yaml", testJob),
		input: writeFile(t, dir, "events.ndjson", testRecords),
		out:   filepath.Join(dir, "report.json"),
	}
	health := observability.NewHealthChecker("test")
	runner := newJobRunner(env, opts, health)
	ctx := context.Background()

	report, cached, err := runner.run(ctx, triggerAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: store connection is nil")
	assert.Nil(t, report)
	assert.False(t, cached)

	status := health.Check()
	assert.Equal(t, observability.StatusDegraded, status.Status)
	assert.Contains(t, status.LastError, "store connection is nil")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.JobRunsTotal.WithLabelValues(triggerAPI, "error")))

	// the lock was released and the loop survives
	assert.NotPanics(t, func() { runner.trigger(ctx, triggerSchedule) })
	assert.NotPanics(t, func() { runner.trigger(ctx, triggerWatch) })
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.JobRunsTotal.WithLabelValues(triggerSchedule, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.JobRunsTotal.WithLabelValues(triggerWatch, "error")))
}

func TestJobRunner_MissingFiles(t *testing.T) {
	env := testEnvironment(t, nil)
	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    runOptions
		wantErr string
	}{
		{
			name:    "job",
			opts:    runOptions{job: filepath.Join(dir, "nope.yaml"), input: writeFile(t, dir, "in.ndjson", testRecords)},
			wantErr: "failed to read job definition",
		},
		{
			name:    "input",
			opts:    runOptions{job: writeFile(t, dir, "job.yaml", testJob), input: filepath.Join(dir, "nope.ndjson")},
			wantErr: "failed to read input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newJobRunner(env, tt.opts, nil).run(context.Background(), triggerManual)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
