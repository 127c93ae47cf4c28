package aggregation

import (
	"context"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// cancelCheckInterval is how many events are folded between context checks
const cancelCheckInterval = 4096

// accumulator holds the running state of one group
type accumulator struct {
	key      []events.Value
	included int
	sum      float64
	min      float64
	max      float64
	distinct *roaring.Bitmap
}

// reduction owns every accumulator of a single spec evaluation
type reduction struct {
	spec    Spec
	field   accessor
	dims    []accessor
	groups  map[string]*accumulator
	order   []*accumulator
	dict    map[string]uint32
	keyBuf  strings.Builder
	keyVals []events.Value
}

func newReduction(spec Spec) *reduction {
	r := &reduction{
		spec:   spec,
		groups: make(map[string]*accumulator),
		dims:   make([]accessor, len(spec.GroupBy)),
	}
	if spec.Reducer != Count {
		r.field = accessorFor(spec.Field)
	}
	for i, dim := range spec.GroupBy {
		r.dims[i] = accessorFor(dim)
	}
	if spec.Reducer == DistinctCount {
		r.dict = make(map[string]uint32)
	}
	return r
}

// reduce folds the batch in canonical order and returns the result
func reduce(ctx context.Context, batch events.Batch, spec Spec) (*Result, error) {
	r := newReduction(spec)
	for i, ev := range batch.All() {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if spec.Filter != nil && !spec.Filter.Matches(ev) {
			continue
		}
		r.fold(ev)
	}
	return r.result(), nil
}

func (r *reduction) fold(ev events.Event) {
	acc := r.group(ev)

	switch r.spec.Reducer {
	case Count:
		acc.included++

	case DistinctCount:
		// absent reads as null, which is a distinct value of its own
		val, _ := r.field(ev)
		acc.distinct.Add(r.id(val))
		acc.included++

	default:
		val, ok := r.field(ev)
		if !ok {
			return
		}
		f, ok := val.Float()
		if !ok {
			return
		}
		if acc.included == 0 {
			acc.min, acc.max = f, f
		} else {
			acc.min = min(acc.min, f)
			acc.max = max(acc.max, f)
		}
		acc.sum += f
		acc.included++
	}
}

// group returns the accumulator for the event's group key, creating it on
// first sight so groups keep first-seen order.
func (r *reduction) group(ev events.Event) *accumulator {
	r.keyBuf.Reset()
	r.keyVals = r.keyVals[:0]
	for _, dim := range r.dims {
		val, _ := dim(ev)
		r.keyVals = append(r.keyVals, val)
		k := val.Key()
		r.keyBuf.WriteString(strconv.Itoa(len(k)))
		r.keyBuf.WriteByte(':')
		r.keyBuf.WriteString(k)
	}

	key := r.keyBuf.String()
	if acc, ok := r.groups[key]; ok {
		return acc
	}

	acc := &accumulator{key: make([]events.Value, len(r.keyVals))}
	copy(acc.key, r.keyVals)
	if r.spec.Reducer == DistinctCount {
		acc.distinct = roaring.New()
	}
	r.groups[key] = acc
	r.order = append(r.order, acc)
	return acc
}

// id maps a value to its dictionary id for this evaluation
func (r *reduction) id(val events.Value) uint32 {
	k := val.Key()
	if id, ok := r.dict[k]; ok {
		return id
	}
	id := uint32(len(r.dict))
	r.dict[k] = id
	return id
}

func (r *reduction) result() *Result {
	res := &Result{
		Name:    r.spec.Name,
		Reducer: r.spec.Reducer,
		GroupBy: append([]string(nil), r.spec.GroupBy...),
		Groups:  make([]Group, 0, len(r.order)),
	}

	for _, acc := range r.order {
		if acc.included == 0 {
			// no data for this group
			continue
		}

		var v float64
		switch r.spec.Reducer {
		case Count:
			v = float64(acc.included)
		case DistinctCount:
			v = float64(acc.distinct.GetCardinality())
		case Sum:
			v = acc.sum
		case Average:
			v = acc.sum / float64(acc.included)
		case Min:
			v = acc.min
		case Max:
			v = acc.max
		}
		res.Groups = append(res.Groups, Group{Key: acc.key, Value: v})
	}

	// counting nothing is zero, not absent
	if len(res.Groups) == 0 && len(r.spec.GroupBy) == 0 &&
		(r.spec.Reducer == Count || r.spec.Reducer == DistinctCount) {
		res.Groups = append(res.Groups, Group{Key: []events.Value{}, Value: 0})
	}
	return res
}
