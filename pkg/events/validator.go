package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ValidatorConfig defines validation behavior
type ValidatorConfig struct {
	// Lenient omits properties with unsupported (nested) values instead of
	// rejecting the record. Omissions are reported as warnings.
	Lenient bool
}

// DefaultValidatorConfig returns strict validation settings
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{Lenient: false}
}

// Validator turns raw records into events
type Validator struct {
	config *ValidatorConfig
}

// NewValidator creates a new validator
func NewValidator(config *ValidatorConfig) *Validator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &Validator{config: config}
}

var strictValidator = NewValidator(nil)

// Validate validates a record with strict settings
func Validate(raw Record) (Event, error) {
	ev, _, err := strictValidator.Validate(raw)
	return ev, err
}

// Validate converts a raw record into an Event. The returned warnings list
// properties omitted in lenient mode; err is a *ValidationError when the
// record is rejected.
func (v *Validator) Validate(raw Record) (Event, []*ValidationError, error) {
	subjectID, verr := subjectField(raw)
	if verr != nil {
		return Event{}, nil, verr
	}

	name, verr := nameField(raw)
	if verr != nil {
		return Event{}, nil, verr
	}

	ts, verr := timestampField(raw)
	if verr != nil {
		return Event{}, nil, verr
	}

	props, warnings, verr := v.propertiesField(raw)
	if verr != nil {
		return Event{}, nil, verr
	}

	return Event{
		subjectID:  subjectID,
		name:       name,
		timestamp:  ts,
		properties: props,
	}, warnings, nil
}

func subjectField(raw Record) (string, *ValidationError) {
	x, ok := raw[FieldSubjectID]
	if !ok || x == nil {
		return "", missingField(FieldSubjectID)
	}
	switch s := x.(type) {
	case string:
		if s == "" {
			return "", missingField(FieldSubjectID)
		}
		return s, nil
	case bool:
		return "", invalidType(FieldSubjectID, "subject_id must be a string or an integer")
	}
	n, ok := asInteger(x)
	if !ok {
		return "", invalidType(FieldSubjectID, fmt.Sprintf("subject_id must be a string or an integer, got %T", x))
	}
	return strconv.FormatInt(n, 10), nil
}

func nameField(raw Record) (string, *ValidationError) {
	x, ok := raw[FieldEventName]
	if !ok || x == nil {
		return "", missingField(FieldEventName)
	}
	s, ok := x.(string)
	if !ok {
		return "", invalidType(FieldEventName, fmt.Sprintf("event_name must be a string, got %T", x))
	}
	if s == "" {
		return "", missingField(FieldEventName)
	}
	return s, nil
}

func timestampField(raw Record) (int64, *ValidationError) {
	x, ok := raw[FieldTimestamp]
	if !ok || x == nil {
		return 0, missingField(FieldTimestamp)
	}
	if _, isBool := x.(bool); isBool {
		return 0, invalidType(FieldTimestamp, "timestamp must be a non-negative integer")
	}
	n, ok := asInteger(x)
	if !ok || n < 0 {
		return 0, invalidType(FieldTimestamp, fmt.Sprintf("timestamp must be a non-negative integer, got %v", x))
	}
	return n, nil
}

func (v *Validator) propertiesField(raw Record) (map[string]Value, []*ValidationError, *ValidationError) {
	x, ok := raw[FieldProperties]
	if !ok || x == nil {
		return nil, nil, nil
	}

	var props map[string]Value
	var warnings []*ValidationError

	add := func(key string, val any) *ValidationError {
		value, err := ValueOf(val)
		if err != nil {
			perr := unsupportedProperty(key, err)
			if !errors.Is(err, ErrUnsupportedPropertyType) {
				perr = invalidType(PropertyField(key), err.Error())
			}
			if v.config.Lenient && perr.Kind == UnsupportedPropertyType {
				warnings = append(warnings, perr)
				return nil
			}
			return perr
		}
		props[key] = value
		return nil
	}

	switch m := x.(type) {
	case map[string]any:
		props = make(map[string]Value, len(m))
		for key, val := range m {
			if err := add(key, val); err != nil {
				return nil, nil, err
			}
		}
	case map[string]Value:
		props = make(map[string]Value, len(m))
		for key, val := range m {
			props[key] = val
		}
	case Record:
		props = make(map[string]Value, len(m))
		for key, val := range m {
			if err := add(key, val); err != nil {
				return nil, nil, err
			}
		}
	default:
		return nil, nil, invalidType(FieldProperties, fmt.Sprintf("properties must be an object, got %T", x))
	}

	if len(props) == 0 {
		props = nil
	}
	return props, warnings, nil
}

// asInteger accepts Go integers and integral floats or json.Numbers
func asInteger(x any) (int64, bool) {
	switch n := x.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case Value:
		f, ok := n.Float()
		if !ok {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

func uintToInt(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
