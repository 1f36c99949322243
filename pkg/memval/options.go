package memval

import "time"

// Option configures a MemoryValue or StoredValue.
type Option[T any] func(*options[T])

type options[T any] struct {
	initial    T
	hasInitial bool
	equal      func(T, T) bool
	codec      Codec
	timeout    time.Duration
}

// WithInitial seeds the container with v so it is readable immediately.
// For a StoredValue a value found in storage replaces it once hydrated.
func WithInitial[T any](v T) Option[T] {
	return func(o *options[T]) {
		o.initial = v
		o.hasInitial = true
	}
}

// WithEqual replaces the default deep equality used to drop redundant
// emissions. This is useful for types where Equal is too expensive or has
// the wrong semantics.
func WithEqual[T any](fn func(a, b T) bool) Option[T] {
	return func(o *options[T]) {
		o.equal = fn
	}
}

// WithCodec sets the serialization used for storage slots.
// Default: JSON. Ignored by MemoryValue.
func WithCodec[T any](c Codec) Option[T] {
	return func(o *options[T]) {
		o.codec = c
	}
}

// WithTimeout bounds every storage operation (hydration read, write, delete).
// Default: 0 (no timeout). Ignored by MemoryValue.
func WithTimeout[T any](d time.Duration) Option[T] {
	return func(o *options[T]) {
		o.timeout = d
	}
}

func applyOptions[T any](opts []Option[T]) options[T] {
	o := options[T]{
		equal: Equal[T],
		codec: JSON,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.equal == nil {
		o.equal = Equal[T]
	}
	if o.codec == nil {
		o.codec = JSON
	}
	return o
}
