package events

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// Record field names
const (
	FieldSubjectID  = "subject_id"
	FieldEventName  = "event_name"
	FieldTimestamp  = "timestamp"
	FieldProperties = "properties"
)

// Record is a raw input record as decoded from JSON or supplied by a host
// application. Only the four documented keys are read.
type Record map[string]any

// Event is a validated, immutable event
type Event struct {
	subjectID  string
	name       string
	timestamp  int64
	properties map[string]Value
}

// New constructs an event from already typed parts. The properties map is
// copied. It applies the same required-field rules as Validate.
func New(subjectID, name string, timestamp int64, properties map[string]Value) (Event, error) {
	if subjectID == "" {
		return Event{}, missingField(FieldSubjectID)
	}
	if name == "" {
		return Event{}, missingField(FieldEventName)
	}
	if timestamp < 0 {
		return Event{}, invalidType(FieldTimestamp, "timestamp must be a non-negative integer")
	}
	return Event{
		subjectID:  subjectID,
		name:       name,
		timestamp:  timestamp,
		properties: maps.Clone(properties),
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixtures.
func MustNew(subjectID, name string, timestamp int64, properties map[string]Value) Event {
	ev, err := New(subjectID, name, timestamp, properties)
	if err != nil {
		panic(err)
	}
	return ev
}

// SubjectID returns the acting entity's identifier
func (e Event) SubjectID() string { return e.subjectID }

// Name returns the event name
func (e Event) Name() string { return e.name }

// Timestamp returns milliseconds since the Unix epoch
func (e Event) Timestamp() int64 { return e.timestamp }

// Property returns a property value and whether it is present
func (e Event) Property(key string) (Value, bool) {
	v, ok := e.properties[key]
	return v, ok
}

// Properties returns a copy of the event properties
func (e Event) Properties() map[string]Value {
	return maps.Clone(e.properties)
}

// PropertyKeys returns the property keys in sorted order
func (e Event) PropertyKeys() []string {
	return slices.Sorted(maps.Keys(e.properties))
}

// NumProperties returns the number of properties
func (e Event) NumProperties() int { return len(e.properties) }

// Equal reports whether two events carry identical data
func (e Event) Equal(o Event) bool {
	if e.subjectID != o.subjectID || e.name != o.name || e.timestamp != o.timestamp {
		return false
	}
	return maps.EqualFunc(e.properties, o.properties, Value.Equal)
}

// Record converts the event back into its raw record form.
// Validating the returned record yields an equal event.
func (e Event) Record() Record {
	rec := Record{
		FieldSubjectID: e.subjectID,
		FieldEventName: e.name,
		FieldTimestamp: e.timestamp,
	}
	if len(e.properties) > 0 {
		props := make(map[string]any, len(e.properties))
		for k, v := range e.properties {
			props[k] = v
		}
		rec[FieldProperties] = props
	}
	return rec
}

type eventJSON struct {
	SubjectID  string           `json:"subject_id"`
	EventName  string           `json:"event_name"`
	Timestamp  int64            `json:"timestamp"`
	Properties map[string]Value `json:"properties,omitempty"`
}

// MarshalJSON encodes the event in its record shape
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		SubjectID:  e.subjectID,
		EventName:  e.name,
		Timestamp:  e.timestamp,
		Properties: e.properties,
	})
}

// UnmarshalJSON decodes and validates an event
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev, err := New(raw.SubjectID, raw.EventName, raw.Timestamp, raw.Properties)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return err
	}
	*e = ev
	return nil
}
