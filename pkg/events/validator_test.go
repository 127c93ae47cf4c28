package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		record    Record
		wantKind  ErrorKind
		wantField string
	}{
		{
			name:      "missing subject",
			record:    Record{"event_name": "view", "timestamp": 1},
			wantKind:  MissingField,
			wantField: FieldSubjectID,
		},
		{
			name:      "empty subject",
			record:    Record{"subject_id": "", "event_name": "view", "timestamp": 1},
			wantKind:  MissingField,
			wantField: FieldSubjectID,
		},
		{
			name:      "null subject",
			record:    Record{"subject_id": nil, "event_name": "view", "timestamp": 1},
			wantKind:  MissingField,
			wantField: FieldSubjectID,
		},
		{
			name:      "bool subject",
			record:    Record{"subject_id": true, "event_name": "view", "timestamp": 1},
			wantKind:  InvalidType,
			wantField: FieldSubjectID,
		},
		{
			name:      "fractional subject",
			record:    Record{"subject_id": 1.5, "event_name": "view", "timestamp": 1},
			wantKind:  InvalidType,
			wantField: FieldSubjectID,
		},
		{
			name:      "missing event name",
			record:    Record{"subject_id": "u1", "timestamp": 1},
			wantKind:  MissingField,
			wantField: FieldEventName,
		},
		{
			name:      "numeric event name",
			record:    Record{"subject_id": "u1", "event_name": 7, "timestamp": 1},
			wantKind:  InvalidType,
			wantField: FieldEventName,
		},
		{
			name:      "missing timestamp",
			record:    Record{"subject_id": "u1", "event_name": "view"},
			wantKind:  MissingField,
			wantField: FieldTimestamp,
		},
		{
			name:      "negative timestamp",
			record:    Record{"subject_id": "u1", "event_name": "view", "timestamp": -5},
			wantKind:  InvalidType,
			wantField: FieldTimestamp,
		},
		{
			name:      "string timestamp",
			record:    Record{"subject_id": "u1", "event_name": "view", "timestamp": "100"},
			wantKind:  InvalidType,
			wantField: FieldTimestamp,
		},
		{
			name:      "fractional timestamp",
			record:    Record{"subject_id": "u1", "event_name": "view", "timestamp": 100.5},
			wantKind:  InvalidType,
			wantField: FieldTimestamp,
		},
		{
			name:      "properties not an object",
			record:    Record{"subject_id": "u1", "event_name": "view", "timestamp": 1, "properties": []any{1}},
			wantKind:  InvalidType,
			wantField: FieldProperties,
		},
		{
			name: "nested property",
			record: Record{"subject_id": "u1", "event_name": "view", "timestamp": 1,
				"properties": map[string]any{"cart": map[string]any{"items": 2}}},
			wantKind:  UnsupportedPropertyType,
			wantField: "properties.cart",
		},
		{
			name: "array property",
			record: Record{"subject_id": "u1", "event_name": "view", "timestamp": 1,
				"properties": map[string]any{"tags": []any{"a", "b"}}},
			wantKind:  UnsupportedPropertyType,
			wantField: "properties.tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.record)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
			assert.Equal(t, tt.wantKind, verr.Kind)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, -1, verr.Index)
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	ev, err := Validate(Record{
		"subject_id": int64(42),
		"event_name": "purchase",
		"timestamp":  json.Number("1700000000000"),
		"properties": map[string]any{
			"amount":   10,
			"price":    9.5,
			"plan":     "pro",
			"trial":    false,
			"coupon":   nil,
			"quantity": json.Number("3"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "42", ev.SubjectID())
	assert.Equal(t, "purchase", ev.Name())
	assert.Equal(t, int64(1700000000000), ev.Timestamp())
	assert.Equal(t, 6, ev.NumProperties())

	amount, ok := ev.Property("amount")
	require.True(t, ok)
	f, isNum := amount.Float()
	assert.True(t, isNum)
	assert.Equal(t, 10.0, f)

	coupon, ok := ev.Property("coupon")
	require.True(t, ok)
	assert.True(t, coupon.IsNull())

	qty, _ := ev.Property("quantity")
	assert.True(t, qty.Equal(Number(3)))
}

func TestValidate_IntegralFloatTimestamp(t *testing.T) {
	// encoding/json decodes numbers into float64 by default
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"subject_id":"u1","event_name":"view","timestamp":150}`), &rec))

	ev, err := Validate(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(150), ev.Timestamp())
}

func TestValidator_Lenient(t *testing.T) {
	v := NewValidator(&ValidatorConfig{Lenient: true})

	ev, warnings, err := v.Validate(Record{
		"subject_id": "u1",
		"event_name": "view",
		"timestamp":  1,
		"properties": map[string]any{
			"page":   "/home",
			"nested": map[string]any{"a": 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, UnsupportedPropertyType, warnings[0].Kind)
	assert.Equal(t, "properties.nested", warnings[0].Field)

	_, ok := ev.Property("nested")
	assert.False(t, ok)
	page, ok := ev.Property("page")
	assert.True(t, ok)
	assert.True(t, page.Equal(String("/home")))
}

func TestValidate_RecordRoundTrip(t *testing.T) {
	ev := MustNew("u1", "signup", 150, map[string]Value{
		"plan":  String("pro"),
		"seats": Number(3),
		"paid":  Bool(true),
		"ref":   Null(),
	})

	again, err := Validate(ev.Record())
	require.NoError(t, err)
	assert.True(t, ev.Equal(again))
}

func TestValidate_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Validate(Record{"subject_id": i, "event_name": "tick", "timestamp": i})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := missingField(FieldTimestamp).WithIndex(3)
	assert.Equal(t, "record 3: MissingField: timestamp: required field is missing", err.Error())

	data, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	assert.Contains(t, string(data), `"kind":"MissingField"`)

	var decoded ValidationError
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *err, decoded)

	var kind ErrorKind
	assert.Error(t, kind.UnmarshalText([]byte("Bogus")))
}

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{MissingField, "MissingField"},
		{InvalidType, "InvalidType"},
		{UnsupportedPropertyType, "UnsupportedPropertyType"},
		{ErrorKind(-1), "unknown"},
		{ErrorKind(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}

	_, err := ErrorKind(42).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "record 0: unknown: name: bad", (&ValidationError{Field: "name", Kind: ErrorKind(42), Message: "bad"}).Error())
}

func TestSpecError(t *testing.T) {
	err := NewSpecError("revenue", 2, "field is required for %s", "sum")

	assert.True(t, errors.Is(err, ErrInvalidSpecification))
	assert.Contains(t, err.Error(), `"revenue"`)
	assert.Contains(t, err.Error(), "field is required for sum")
}
