package condition

import (
	"bytes"
	"encoding/json"
	"slices"
)

// AnyOneOf constrains a value to a set. The zero value (or JSON null) places no
// constraint; an explicit list requires membership, so an empty list matches nothing.
type AnyOneOf[T comparable] struct {
	values      []T
	constrained bool
}

// Wildcard returns an AnyOneOf that matches every value.
func Wildcard[T comparable]() AnyOneOf[T] {
	return AnyOneOf[T]{}
}

// OneOf returns an AnyOneOf that matches only the given values.
func OneOf[T comparable](values ...T) AnyOneOf[T] {
	if values == nil {
		values = []T{}
	}
	return AnyOneOf[T]{values: values, constrained: true}
}

// Matches reports whether v satisfies the constraint.
func (a AnyOneOf[T]) Matches(v T) bool {
	if !a.constrained {
		return true
	}
	return slices.Contains(a.values, v)
}

// IsWildcard reports whether a places no constraint.
func (a AnyOneOf[T]) IsWildcard() bool {
	return !a.constrained
}

// Values returns the allowed values, nil for a wildcard.
func (a AnyOneOf[T]) Values() []T {
	return a.values
}

// MarshalJSON implements json.Marshaler.
func (a AnyOneOf[T]) MarshalJSON() ([]byte, error) {
	if !a.constrained {
		return []byte("null"), nil
	}
	return json.Marshal(a.values)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AnyOneOf[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = AnyOneOf[T]{}
		return nil
	}
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*a = OneOf(values...)
	return nil
}
