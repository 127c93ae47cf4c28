package store

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/eventlens/pkg/job"
)

// MultiStore saves to every store concurrently and reads from the first
type MultiStore struct {
	stores []Store
}

// NewMultiStore fans out to stores. Reads are served by stores[0].
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

// Save saves to all stores. A failing store does not stop the others; the
// errors are joined.
func (m *MultiStore) Save(ctx context.Context, report *job.Report) error {
	errs := make([]error, len(m.stores))
	var g errgroup.Group
	for i, s := range m.stores {
		g.Go(func() error {
			errs[i] = s.Save(ctx, report)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Latest reads from the first store
func (m *MultiStore) Latest(ctx context.Context, jobName string) (*job.Report, error) {
	if len(m.stores) == 0 {
		return nil, ErrNotFound
	}
	return m.stores[0].Latest(ctx, jobName)
}

// List reads from the first store
func (m *MultiStore) List(ctx context.Context, jobName string, limit int) ([]*job.Report, error) {
	if len(m.stores) == 0 {
		return nil, nil
	}
	return m.stores[0].List(ctx, jobName, limit)
}

// Close closes every store
func (m *MultiStore) Close() error {
	var errs []error
	for _, s := range m.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
