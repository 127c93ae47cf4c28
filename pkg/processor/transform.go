package processor

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/platinummonkey/eventlens/pkg/events"
)

// rename applies the rename map. Keys that are not renamed are placed first
// so a renamed key always wins a collision; colliding renamed keys resolve in
// lexical order of their source key.
func rename(props map[string]events.Value, renames map[string]string) map[string]events.Value {
	if len(renames) == 0 || len(props) == 0 {
		return props
	}

	out := make(map[string]events.Value, len(props))
	var renamed []string
	for key, val := range props {
		if _, ok := renames[key]; ok {
			renamed = append(renamed, key)
			continue
		}
		out[key] = val
	}
	slices.Sort(renamed)
	for _, key := range renamed {
		out[renames[key]] = props[key]
	}
	return out
}

// coerce converts configured properties in place. Failures are returned per
// key in lexical order.
func coerce(props map[string]events.Value, rules map[string]events.Kind) []coercionFailure {
	if len(rules) == 0 || len(props) == 0 {
		return nil
	}

	var failures []coercionFailure
	for _, key := range slices.Sorted(maps.Keys(rules)) {
		val, ok := props[key]
		if !ok {
			continue
		}
		converted, err := convert(val, rules[key])
		if err != nil {
			failures = append(failures, coercionFailure{key: key, err: err})
			continue
		}
		props[key] = converted
	}
	return failures
}

type coercionFailure struct {
	key string
	err error
}

// convert coerces a single value. Null stays null for every target kind.
func convert(v events.Value, to events.Kind) (events.Value, error) {
	if v.Kind() == to || v.IsNull() {
		return v, nil
	}

	switch to {
	case events.KindNull:
		return events.Null(), nil

	case events.KindString:
		return events.String(v.String()), nil

	case events.KindNumber:
		if b, ok := v.Boolean(); ok {
			if b {
				return events.Number(1), nil
			}
			return events.Number(0), nil
		}
		s, _ := v.Str()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return events.Null(), fmt.Errorf("cannot convert %q to a number", s)
		}
		return events.Number(f), nil

	case events.KindBool:
		if f, ok := v.Float(); ok {
			return events.Bool(f != 0), nil
		}
		s, _ := v.Str()
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return events.Null(), fmt.Errorf("cannot convert %q to a boolean", s)
		}
		return events.Bool(b), nil
	}

	return events.Null(), fmt.Errorf("unknown target kind %s", to)
}

// drop keeps only known properties
func drop(props map[string]events.Value, known map[string]struct{}) map[string]events.Value {
	for key := range props {
		if _, ok := known[key]; !ok {
			delete(props, key)
		}
	}
	return props
}
