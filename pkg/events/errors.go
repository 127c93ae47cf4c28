package events

import (
	"errors"
	"fmt"
)

// ErrInvalidSpecification is wrapped by every SpecError
var ErrInvalidSpecification = errors.New("invalid specification")

// ErrorKind classifies a per-record validation failure
type ErrorKind int

const (
	// MissingField means a required field is absent, null or empty
	MissingField ErrorKind = iota
	// InvalidType means a field holds a value of the wrong type
	InvalidType
	// UnsupportedPropertyType means a property value is not a scalar
	UnsupportedPropertyType
)

var errorKindNames = []string{"MissingField", "InvalidType", "UnsupportedPropertyType"}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return "unknown"
	}
	return errorKindNames[k]
}

// MarshalText renders the kind name in JSON reports
func (k ErrorKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(errorKindNames) {
		return nil, fmt.Errorf("unknown error kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name so stored reports can be read back
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for i, name := range errorKindNames {
		if string(text) == name {
			*k = ErrorKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// ValidationError describes why a raw record (or one of its properties) was
// rejected. Index is the record's position in its input batch, or -1 when
// the record was validated on its own.
type ValidationError struct {
	Index   int       `json:"index"`
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("record %d: %s: %s: %s", e.Index, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
}

// WithIndex returns a copy of the error attributed to a batch position
func (e *ValidationError) WithIndex(index int) *ValidationError {
	cp := *e
	cp.Index = index
	return &cp
}

func missingField(field string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Kind: MissingField, Message: "required field is missing"}
}

func invalidType(field, msg string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Kind: InvalidType, Message: msg}
}

func unsupportedProperty(key string, err error) *ValidationError {
	return &ValidationError{
		Index:   -1,
		Field:   PropertyField(key),
		Kind:    UnsupportedPropertyType,
		Message: err.Error(),
	}
}

// PropertyField returns the field path used in errors for a property key
func PropertyField(key string) string {
	return FieldProperties + "." + key
}

// NewPropertyTypeError builds an InvalidType error for a property whose value
// cannot be converted as configured.
func NewPropertyTypeError(key, msg string) *ValidationError {
	return invalidType(PropertyField(key), msg)
}

// SpecError reports an unusable metric or funnel specification. It is fatal
// to the single call that received it.
type SpecError struct {
	Spec   string
	Index  int
	Reason string
}

// NewSpecError creates a SpecError for the spec at position index
func NewSpecError(spec string, index int, format string, args ...any) *SpecError {
	return &SpecError{Spec: spec, Index: index, Reason: fmt.Sprintf(format, args...)}
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("invalid specification %q (#%d): %s", e.Spec, e.Index, e.Reason)
}

func (e *SpecError) Unwrap() error { return ErrInvalidSpecification }
