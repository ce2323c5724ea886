// Package optional distinguishes an absent JSON field from an explicit null.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field is a request field that may be absent, null or carry a value.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Of returns a Field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a Field that was explicitly cleared.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

// Apply copies the field into dst when it was present in the request.
func (f Field[T]) Apply(dst **T) {
	if f.Set {
		*dst = f.Value
	}
}

// Get returns the inner value, or nil when absent or null. Used as a
// validator custom type func so binding tags see the wrapped value.
func (f Field[T]) Get() interface{} {
	if f.Value == nil {
		return nil
	}
	return *f.Value
}
