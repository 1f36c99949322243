package memval

import (
	"encoding/json"
	"fmt"
)

// State describes whether a container holds a value.
type State uint8

const (
	// Undetermined means no value was ever set or hydrated.
	Undetermined State = iota

	// Null is the explicit "no value" state. Persistent containers use it to
	// report that storage was checked and held nothing.
	Null

	// Present means the container holds a concrete value.
	Present
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Undetermined:
		return "undetermined"
	case Null:
		return "null"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Snapshot is an immutable view of a container's state.
// The zero Snapshot is undetermined.
type Snapshot[T any] struct {
	value   T
	state   State
	version uint64
}

// Some returns a present snapshot holding v.
func Some[T any](v T) Snapshot[T] {
	return Snapshot[T]{value: v, state: Present}
}

// None returns a null snapshot.
func None[T any]() Snapshot[T] {
	return Snapshot[T]{state: Null}
}

// Get returns the value and whether it is present.
func (s Snapshot[T]) Get() (T, bool) {
	return s.value, s.state == Present
}

// Value returns the value, or the zero T when the snapshot is not present.
func (s Snapshot[T]) Value() T {
	return s.value
}

// State returns the snapshot state.
func (s Snapshot[T]) State() State {
	return s.state
}

// Determined reports whether a value (possibly Null) has been established.
func (s Snapshot[T]) Determined() bool {
	return s.state != Undetermined
}

// IsNull reports whether the snapshot is the explicit null state.
func (s Snapshot[T]) IsNull() bool {
	return s.state == Null
}

// Present reports whether the snapshot holds a value.
func (s Snapshot[T]) Present() bool {
	return s.state == Present
}

// Version is the commit number that produced this snapshot. It increases by
// one for every accepted emission, so renderers can compare versions instead
// of values.
func (s Snapshot[T]) Version() uint64 {
	return s.version
}

// String formats the snapshot for logs.
func (s Snapshot[T]) String() string {
	if s.state != Present {
		return s.state.String()
	}
	return fmt.Sprintf("%v", s.value)
}

// MarshalJSON encodes the value, or null when the snapshot is not present.
func (s Snapshot[T]) MarshalJSON() ([]byte, error) {
	if s.state != Present {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// same reports whether two snapshots describe the same state and value.
func same[T any](a, b Snapshot[T], equal func(T, T) bool) bool {
	if a.state != b.state {
		return false
	}
	if a.state != Present {
		return true
	}
	return equal(a.value, b.value)
}
