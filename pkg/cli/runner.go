package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// Run triggers
const (
	triggerManual   = "manual"
	triggerStartup  = "startup"
	triggerWatch    = "watch"
	triggerSchedule = "schedule"
	triggerAPI      = "api"
)

const reportCacheType = "report"

type runOptions struct {
	job    string
	input  string
	out    string
	store  string
	strict bool
}

func (o runOptions) validate() error {
	if o.job == "" {
		return fmt.Errorf("-job is required")
	}
	if o.input == "" {
		return fmt.Errorf("-input is required")
	}
	return nil
}

// jobRunner runs a job definition against an input file. Reports are cached
// by the content of both files so an unchanged job is never recomputed.
type jobRunner struct {
	env    *environment
	opts   runOptions
	cache  *lru.LRU[uint64, *job.Report]
	health *observability.HealthChecker

	// serializes runs
	mu sync.Mutex
}

// newJobRunner creates a runner. health may be nil.
func newJobRunner(env *environment, opts runOptions, health *observability.HealthChecker) *jobRunner {
	onEvict := func(uint64, *job.Report) {
		env.metrics.CacheEvictionsTotal.WithLabelValues(reportCacheType).Inc()
	}
	return &jobRunner{
		env:    env,
		opts:   opts,
		cache:  lru.NewLRU[uint64, *job.Report](env.config.Cache.Size, onEvict, env.config.Cache.TTL),
		health: health,
	}
}

// contentKey digests the job definition and the input. Lengths are mixed in
// so moving bytes between the two files changes the key.
func contentKey(def, input []byte) uint64 {
	d := xxhash.New()
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(def)))
	_, _ = d.Write(n[:])
	_, _ = d.Write(def)
	_, _ = d.Write(input)
	return d.Sum64()
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// run executes the job once. cached reports whether the report came from the
// cache, in which case the output is not rewritten.
func (r *jobRunner) run(ctx context.Context, trigger string) (report *job.Report, cached bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if rerr := observability.MustRecover(recover()); rerr != nil {
			report, cached, err = nil, false, fmt.Errorf("job run failed: %w", rerr)
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		r.env.metrics.JobRunsTotal.WithLabelValues(trigger, status).Inc()
		r.env.metrics.LastRunTimestamp.SetToCurrentTime()
		if r.env.otelMetrics != nil {
			r.env.otelMetrics.RecordJobRun(ctx, trigger, err)
		}
		if r.health != nil {
			r.health.RecordRun(err)
		}
	}()

	defBytes, err := os.ReadFile(r.opts.job)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read job definition: %w", err)
	}
	input, err := readSource(r.opts.input)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read input: %w", err)
	}

	key := contentKey(defBytes, input)
	if report, ok := r.cache.Get(key); ok {
		r.recordCache(ctx, true)
		return report, true, nil
	}
	r.recordCache(ctx, false)

	def, err := job.Parse(bytes.NewReader(defBytes))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", r.opts.job, err)
	}
	records, err := job.ReadRecords(bytes.NewReader(input))
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", r.opts.input, err)
	}

	report, err = r.env.engine.Run(ctx, def, records)
	if err != nil {
		return nil, false, err
	}
	if err := writeOutput(r.opts.out, report.WriteJSON); err != nil {
		return nil, false, err
	}
	if err := r.publish(ctx, report); err != nil {
		return nil, false, err
	}

	r.cache.Add(key, report)
	return report, false, nil
}

// publish saves the report to the configured store. An unpublished report is
// not cached, so the next trigger retries it.
func (r *jobRunner) publish(ctx context.Context, report *job.Report) error {
	if r.env.reports == nil {
		return nil
	}
	start := time.Now()
	err := r.env.reports.Save(ctx, report)
	r.env.metrics.ObserveOperation("publish", start, err)
	if err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

func (r *jobRunner) recordCache(ctx context.Context, hit bool) {
	if hit {
		r.env.metrics.CacheHitsTotal.WithLabelValues(reportCacheType).Inc()
	} else {
		r.env.metrics.CacheMissesTotal.WithLabelValues(reportCacheType).Inc()
	}
	if r.env.otelMetrics == nil {
		return
	}
	if hit {
		r.env.otelMetrics.RecordCacheHit(ctx, reportCacheType)
	} else {
		r.env.otelMetrics.RecordCacheMiss(ctx, reportCacheType)
	}
}

// trigger runs the job and logs the outcome. Long-running commands use it
// so a failed or panicking run never stops the loop.
func (r *jobRunner) trigger(ctx context.Context, trigger string) {
	defer observability.RecoverPanic(r.env.obsLogger, trigger+" trigger")

	log := r.env.log.WithFields(logrus.Fields{
		"trigger": trigger,
		"job":     r.opts.job,
	})

	report, cached, err := r.run(ctx, trigger)
	if err != nil {
		log.WithError(err).Error("Job run failed")
		return
	}
	if cached {
		log.WithField("run_id", report.RunID).Debug("Inputs unchanged, reusing report")
		return
	}
	log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"events":   report.Events,
		"rejected": report.Rejected(),
	}).Info("Job run complete")
}
