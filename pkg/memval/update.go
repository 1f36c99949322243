package memval

// Update resolves a container's next state from its previous snapshot.
//
// It is the single form behind "set a value or apply an updater": literal
// values are wrapped with Literal, computed values are plain functions. The
// candidate is always resolved before equality checks or storage writes.
// Updates must be pure; under contention Emit may call them more than once.
type Update[T any] func(prev Snapshot[T]) Snapshot[T]

// Literal returns an Update that ignores the previous state and sets v.
func Literal[T any](v T) Update[T] {
	return func(Snapshot[T]) Snapshot[T] {
		return Some(v)
	}
}

// Clear returns an Update that sets the explicit null state.
func Clear[T any]() Update[T] {
	return func(Snapshot[T]) Snapshot[T] {
		return None[T]()
	}
}

// Absent returns an Update that removes the value. Persistent containers
// delete their storage slot; in memory the container becomes Null, since a
// determined container never reverts to undetermined.
func Absent[T any]() Update[T] {
	return func(Snapshot[T]) Snapshot[T] {
		return Snapshot[T]{}
	}
}

// Map returns an Update that applies fn to the current value. When the
// container holds no value, fn receives the zero T.
func Map[T any](fn func(T) T) Update[T] {
	return func(prev Snapshot[T]) Snapshot[T] {
		return Some(fn(prev.value))
	}
}
