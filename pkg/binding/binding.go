package binding

import (
	"sync"

	"github.com/vango-dev/memval/pkg/memval"
)

// Setter writes to a container. It accepts the tagged "value or updater"
// form and returns the resulting state.
type Setter[T any] func(update memval.Update[T]) memval.Snapshot[T]

// Set stores v.
func (s Setter[T]) Set(v T) memval.Snapshot[T] {
	return s(memval.Literal(v))
}

// Update stores the result of fn applied to the current value.
func (s Setter[T]) Update(fn func(T) T) memval.Snapshot[T] {
	return s(memval.Map(fn))
}

// Clear sets the explicit null state.
func (s Setter[T]) Clear() memval.Snapshot[T] {
	return s(memval.Clear[T]())
}

// Remove drops the value; persistent containers delete their storage slot.
func (s Setter[T]) Remove() memval.Snapshot[T] {
	return s(memval.Absent[T]())
}

// Binding is the subscribe-with-snapshot view of one container.
// All function fields are created once and never change.
type Binding[T any] struct {
	// Subscribe registers onChange to run after every accepted emission and
	// returns the function that removes it.
	Subscribe func(onChange func()) func()

	// GetSnapshot returns the container's current state. It never blocks on I/O.
	GetSnapshot func() memval.Snapshot[T]

	// Set writes to the container.
	Set Setter[T]

	source memval.Observable[T]
}

// bindings caches one Binding per container so repeated lookups return the
// same functions.
var bindings sync.Map // map[any]any

// For returns the Binding for obs, creating it on first use.
//
// The cache is process-wide and holds a reference to obs, so a container
// looked up here stays alive until Forget is called for it.
func For[T any](obs memval.Observable[T]) *Binding[T] {
	if v, ok := bindings.Load(obs); ok {
		return v.(*Binding[T])
	}
	v, _ := bindings.LoadOrStore(obs, newBinding(obs))
	return v.(*Binding[T])
}

// Forget drops the cached Binding for obs. A later For creates a new one.
func Forget[T any](obs memval.Observable[T]) {
	bindings.Delete(obs)
}

func newBinding[T any](obs memval.Observable[T]) *Binding[T] {
	return &Binding[T]{
		Subscribe: func(onChange func()) func() {
			if onChange == nil {
				return func() {}
			}
			unsubscribe := obs.Subscribe(func(memval.Snapshot[T]) error {
				onChange()
				return nil
			})
			return func() { unsubscribe() }
		},
		GetSnapshot: obs.Snapshot,
		Set:         obs.Emit,
		source:      obs,
	}
}

// Source returns the bound container.
func (b *Binding[T]) Source() memval.Observable[T] {
	return b.source
}

// Observe renders b's container with the reference consumer. See Observe.
func (b *Binding[T]) Observe(render func(memval.Snapshot[T])) (stop func()) {
	return Observe(b.Subscribe, b.GetSnapshot, render)
}

// Use returns the current state of obs and its stable setter.
func Use[T any](obs memval.Observable[T]) (memval.Snapshot[T], Setter[T]) {
	b := For(obs)
	return b.GetSnapshot(), b.Set
}

// UseAsync is Use plus a loading flag. Loading is true while the container is
// still undetermined, so consumers can tell "still hydrating" apart from
// "confirmed empty" (null).
func UseAsync[T any](obs memval.Observable[T]) (loading bool, snap memval.Snapshot[T], set Setter[T]) {
	snap, set = Use(obs)
	return !snap.Determined(), snap, set
}
