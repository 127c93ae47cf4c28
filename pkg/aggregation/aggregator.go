package aggregation

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// Config defines aggregation behavior
type Config struct {
	// Workers is the number of specs evaluated concurrently
	Workers int
}

// DefaultConfig returns default aggregation settings
func DefaultConfig() *Config {
	return &Config{Workers: runtime.GOMAXPROCS(0)}
}

// Aggregator evaluates metric specs over canonical batches
type Aggregator struct {
	config *Config
}

// New creates a new aggregator
func New(config *Config) *Aggregator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers < 1 {
		config = &Config{Workers: 1}
	}
	return &Aggregator{config: config}
}

// Aggregate evaluates every spec against the batch. Results are positionally
// aligned with specs. All specs are validated before any work starts; an
// invalid spec fails the whole call with an *events.SpecError.
func (a *Aggregator) Aggregate(ctx context.Context, batch events.Batch, specs []Spec) ([]*Result, error) {
	if err := ValidateSpecs(specs); err != nil {
		return nil, err
	}

	results := make([]*Result, len(specs))
	if a.config.Workers == 1 || len(specs) < 2 {
		for i, spec := range specs {
			res, err := reduce(ctx, batch, spec)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.config.Workers)

	for i, spec := range specs {
		eg.Go(func() (err error) {
			defer func() {
				if rerr := observability.MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()

			// each spec owns its slot; no locking needed
			res, err := reduce(ctx, batch, spec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Aggregate evaluates specs sequentially with default settings
func Aggregate(batch events.Batch, specs []Spec) ([]*Result, error) {
	return New(&Config{Workers: 1}).Aggregate(context.Background(), batch, specs)
}
