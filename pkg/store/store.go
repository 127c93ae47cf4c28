package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/eventlens/pkg/job"
)

// ErrNotFound is returned when a job has no stored report
var ErrNotFound = errors.New("report not found")

// DefaultJob names reports of unnamed job definitions
const DefaultJob = "default"

// DefaultHistory is how many reports a store keeps per job
const DefaultHistory = 100

// Store publishes job reports and reads them back
type Store interface {
	// Save stores the report as the latest for its job
	Save(ctx context.Context, report *job.Report) error

	// Latest returns the most recent report of a job, or ErrNotFound
	Latest(ctx context.Context, jobName string) (*job.Report, error)

	// List returns up to limit reports of a job, newest first
	List(ctx context.Context, jobName string, limit int) ([]*job.Report, error)

	// Close releases the backend's connections
	Close() error
}

// Options configures the backends opened by Open
type Options struct {
	// History bounds the reports kept per job
	History int

	// TTL expires Redis keys. Zero keeps them forever.
	TTL time.Duration

	// Static S3 credentials. When empty the default AWS chain is used.
	S3AccessKey string
	S3SecretKey string
}

// DefaultOptions returns the default store options
func DefaultOptions() Options {
	return Options{History: DefaultHistory}
}

func (o Options) history() int {
	if o.History <= 0 {
		return DefaultHistory
	}
	return o.History
}

// jobKey maps a job name onto a path and key safe token
func jobKey(name string) string {
	if name == "" {
		return DefaultJob
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}

// runName is a report name that sorts by start time
func runName(report *job.Report) string {
	return report.StartedAt.UTC().Format("20060102T150405.000Z") + "-" + report.RunID
}

func encodeReport(report *job.Report) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

func decodeReport(data []byte) (*job.Report, error) {
	var report job.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

func checkReport(report *job.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("report must have a run id")
	}
	return nil
}
