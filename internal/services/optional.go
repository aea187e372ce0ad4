package services

import (
	"bytes"
	"encoding/json"
)

// Optional marks whether a JSON field was sent at all, sent as null, or sent
// with a value of the wrong type. Decoding never fails; type mismatches are
// reported through Invalid so validation can name the field.
type Optional[T any] struct {
	Present bool
	Null    bool
	Invalid bool
	Value   T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Present: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		o.Invalid = true
	}
	return nil
}

// HasValue reports a present, non-null, well-typed value.
func (o Optional[T]) HasValue() bool {
	return o.Present && !o.Null && !o.Invalid
}
