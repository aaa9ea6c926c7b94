package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// Value is a structured, JSON-like property value. It is stored in canonical
// form (compact, object keys sorted, numbers kept as written) so that two
// equal values always have identical encodings. The engine never interprets
// a value except for equality and ordering.
type Value []byte

// NewValue encodes v, which may be any JSON-marshalable Go value.
func NewValue(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &ValidationError{Value: "<value>", Reason: err.Error()}
	}
	return ParseValue(raw)
}

// MustValue is like NewValue but panics on error.
func MustValue(v any) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ParseValue canonicalizes a JSON document.
func ParseValue(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ValidationError{Value: string(raw), Reason: "malformed JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Value: string(raw), Reason: "trailing data after JSON value"}
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return nil, &ValidationError{Value: string(raw), Reason: err.Error()}
	}
	return Value(canonical), nil
}

// Decode unmarshals the value into dst.
func (v Value) Decode(dst any) error {
	return json.Unmarshal(v, dst)
}

// Equal reports whether two values are the same JSON value.
func (v Value) Equal(o Value) bool {
	return bytes.Equal(v, o)
}

// Compare orders values by their canonical encoding.
func (v Value) Compare(o Value) int {
	return bytes.Compare(v, o)
}

func (v Value) String() string {
	return string(v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	val, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Valid returns a ValidationError unless v is a JSON document in canonical
// form, as produced by NewValue or ParseValue.
func (v Value) Valid() error {
	if len(v) == 0 {
		return &ValidationError{Value: "", Reason: "value is empty"}
	}
	canonical, err := ParseValue(v)
	if err != nil {
		return err
	}
	if !bytes.Equal(canonical, v) {
		return &ValidationError{Value: string(v), Reason: "value is not in canonical form"}
	}
	return nil
}
