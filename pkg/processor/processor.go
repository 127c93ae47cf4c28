package processor

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// minParallelRecords is the batch size below which fan-out costs more than it saves
const minParallelRecords = 512

// Result is the outcome of processing one raw batch
type Result struct {
	// Events is the canonical batch of accepted events
	Events events.Batch
	// Errors lists every rejected record, in input order
	Errors []*events.ValidationError
	// Warnings lists properties omitted in lenient mode, in input order
	Warnings []*events.ValidationError
	// Duplicates is the number of events removed by deduplication
	Duplicates int
}

// Processor validates and transforms raw record batches
type Processor struct {
	config    *Config
	validator *events.Validator
	known     map[string]struct{}
}

// New creates a new processor
func New(config *Config) *Processor {
	if config == nil {
		config = DefaultConfig()
	}

	known := make(map[string]struct{}, len(config.KnownProperties))
	for _, key := range config.KnownProperties {
		known[key] = struct{}{}
	}

	return &Processor{
		config:    config,
		validator: events.NewValidator(&events.ValidatorConfig{Lenient: config.Lenient}),
		known:     known,
	}
}

// Process validates every record independently and returns the canonical
// batch of accepted events alongside all collected errors. A bad record never
// aborts the batch.
func (p *Processor) Process(records []events.Record) *Result {
	res, err := p.ProcessContext(context.Background(), records)
	if err != nil {
		// only a recovered worker panic gets here
		panic(err)
	}
	return res
}

// ProcessContext is Process with cancellation. Records are validated by up to
// Config.Workers goroutines; the result is identical to the sequential path.
func (p *Processor) ProcessContext(ctx context.Context, records []events.Record) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(records))
	if p.config.Workers < 2 || len(records) < minParallelRecords {
		for i, raw := range records {
			outcomes[i] = p.processRecord(i, raw)
		}
	} else if err := p.processParallel(ctx, records, outcomes); err != nil {
		return nil, err
	}

	res := &Result{}
	accepted := make([]events.Event, 0, len(records))
	for _, o := range outcomes {
		res.Warnings = append(res.Warnings, o.warnings...)
		if o.err != nil {
			res.Errors = append(res.Errors, o.err)
			continue
		}
		accepted = append(accepted, o.event)
	}

	res.Events = events.NewBatch(accepted)
	if p.config.Deduplicate {
		var unique []events.Event
		unique, res.Duplicates = dedupe(res.Events)
		if res.Duplicates > 0 {
			res.Events = events.NewBatch(unique)
		}
	}
	return res, nil
}

func (p *Processor) processParallel(ctx context.Context, records []events.Record, outcomes []outcome) error {
	workers := p.config.Workers
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	chunk := (len(records) + workers - 1) / workers
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		eg.Go(func() (err error) {
			defer func() {
				if rerr := observability.MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				outcomes[i] = p.processRecord(i, records[i])
			}
			return nil
		})
	}
	return eg.Wait()
}

type outcome struct {
	event    events.Event
	err      *events.ValidationError
	warnings []*events.ValidationError
}

func (p *Processor) processRecord(index int, raw events.Record) outcome {
	ev, warnings, err := p.validator.Validate(raw)
	for i, w := range warnings {
		warnings[i] = w.WithIndex(index)
	}
	if err != nil {
		var verr *events.ValidationError
		if !errors.As(err, &verr) {
			verr = &events.ValidationError{Kind: events.InvalidType, Message: err.Error()}
		}
		return outcome{err: verr.WithIndex(index), warnings: warnings}
	}

	if !p.transforms() {
		return outcome{event: ev, warnings: warnings}
	}

	props := rename(ev.Properties(), p.config.RenameMap)
	for _, f := range coerce(props, p.config.Coerce) {
		perr := events.NewPropertyTypeError(f.key, f.err.Error()).WithIndex(index)
		if !p.config.Lenient {
			return outcome{err: perr, warnings: warnings}
		}
		delete(props, f.key)
		warnings = append(warnings, perr)
	}
	if p.config.DropUnknownProperties {
		props = drop(props, p.known)
	}

	transformed, err := events.New(ev.SubjectID(), ev.Name(), ev.Timestamp(), props)
	if err != nil {
		var verr *events.ValidationError
		if !errors.As(err, &verr) {
			verr = &events.ValidationError{Kind: events.InvalidType, Message: err.Error()}
		}
		return outcome{err: verr.WithIndex(index), warnings: warnings}
	}
	return outcome{event: transformed, warnings: warnings}
}

func (p *Processor) transforms() bool {
	return p.config.DropUnknownProperties || len(p.config.RenameMap) > 0 || len(p.config.Coerce) > 0
}

// Process runs the default processor over records
func Process(records []events.Record) *Result {
	return New(nil).Process(records)
}
