package funnel

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// cursor tracks one subject's progress. next is the index of the step the
// subject is waiting for; entry is the timestamp of its step-0 event.
type cursor struct {
	next  int
	entry int64
}

// walker runs the per-subject state machine over events in canonical order
type walker struct {
	spec    Spec
	cursors map[string]*cursor
	counts  []int
}

func newWalker(spec Spec) *walker {
	return &walker{
		spec:    spec,
		cursors: make(map[string]*cursor),
		counts:  make([]int, len(spec.Steps)),
	}
}

// step feeds one event. An event advances its subject by at most one step.
func (w *walker) step(ev events.Event) {
	steps := w.spec.Steps
	c, entered := w.cursors[ev.SubjectID()]
	if !entered {
		if steps[0].Matches(ev) {
			w.cursors[ev.SubjectID()] = &cursor{next: 1, entry: ev.Timestamp()}
			w.counts[0]++
		}
		return
	}

	if c.next == len(steps) {
		return
	}
	if !steps[c.next].Matches(ev) {
		return
	}
	// always measured from step 0; a late event leaves the cursor in place
	if w.spec.Window > 0 && ev.Timestamp()-c.entry > w.spec.Window {
		return
	}
	w.counts[c.next]++
	c.next++
}

// Compute walks the batch once and returns per-step subject counts
func Compute(batch events.Batch, spec Spec) (*Result, error) {
	if err := spec.Validate(0); err != nil {
		return nil, err
	}

	w := newWalker(spec)
	for _, ev := range batch.All() {
		w.step(ev)
	}
	return newResult(spec, w.counts), nil
}

// ComputeSharded partitions subjects across shards by a hash of their id and
// walks the shards in parallel. Each subject's events stay in canonical order
// within its shard, so the result equals Compute.
func ComputeSharded(ctx context.Context, batch events.Batch, spec Spec, shards int) (*Result, error) {
	if err := spec.Validate(0); err != nil {
		return nil, err
	}
	if shards < 2 || batch.Len() == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Compute(batch, spec)
	}

	partitions := make([][]int, shards)
	for i, ev := range batch.All() {
		shard := xxhash.Sum64String(ev.SubjectID()) % uint64(shards)
		partitions[shard] = append(partitions[shard], i)
	}

	shardCounts := make([][]int, shards)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(shards)

	for s, idx := range partitions {
		if len(idx) == 0 {
			continue
		}
		eg.Go(func() (err error) {
			defer func() {
				if rerr := observability.MustRecover(recover()); rerr != nil {
					err = rerr
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}

			w := newWalker(spec)
			for _, i := range idx {
				w.step(batch.At(i))
			}
			shardCounts[s] = w.counts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	counts := make([]int, len(spec.Steps))
	for _, sc := range shardCounts {
		for i, c := range sc {
			counts[i] += c
		}
	}
	return newResult(spec, counts), nil
}
