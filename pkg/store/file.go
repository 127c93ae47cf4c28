package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/platinummonkey/eventlens/pkg/job"
)

const latestFile = "latest.json"

// FileStore keeps reports as JSON files under one directory per job:
//
//	<root>/<job>/latest.json
//	<root>/<job>/<started>-<run id>.json
type FileStore struct {
	root    string
	history int
	mu      sync.Mutex
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string, history int) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FileStore{root: dir, history: Options{History: history}.history()}, nil
}

// Save writes the report and replaces latest.json
func (s *FileStore) Save(ctx context.Context, report *job.Report) error {
	if err := checkReport(report); err != nil {
		return err
	}
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, jobKey(report.Job))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, runName(report)+".json"), data); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, latestFile), data); err != nil {
		return err
	}
	return s.cleanup(dir)
}

// cleanup removes the oldest reports beyond the history limit
func (s *FileStore) cleanup(dir string) error {
	names, err := s.runFiles(dir)
	if err != nil {
		return err
	}
	for _, name := range names[min(len(names), s.history):] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove old report: %w", err)
		}
	}
	return nil
}

// runFiles returns the run report names of a job directory, newest first
func (s *FileStore) runFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read job directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == latestFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	slices.Reverse(names)
	return names, nil
}

// Latest reads latest.json of the job
func (s *FileStore) Latest(ctx context.Context, jobName string) (*job.Report, error) {
	data, err := os.ReadFile(filepath.Join(s.root, jobKey(jobName), latestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return decodeReport(data)
}

// List reads the newest reports of the job
func (s *FileStore) List(ctx context.Context, jobName string, limit int) ([]*job.Report, error) {
	dir := filepath.Join(s.root, jobKey(jobName))

	s.mu.Lock()
	names, err := s.runFiles(dir)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		names = names[:min(len(names), limit)]
	}

	reports := make([]*job.Report, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// removed by a concurrent cleanup
				continue
			}
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
