package memval

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

// Listener receives the container's state after every accepted emission.
// A returned error or a panic is logged on the warning channel and never
// stops the remaining listeners.
type Listener[T any] func(Snapshot[T]) error

// Unsubscribe removes the listener it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

// Observable is the contract shared by MemoryValue and StoredValue.
type Observable[T any] interface {
	// Snapshot returns the current state. It never blocks on I/O.
	Snapshot() Snapshot[T]

	// Subscribe registers a listener and returns its Unsubscribe.
	Subscribe(listener Listener[T]) Unsubscribe

	// Emit resolves update against the current state and commits the result
	// unless it deep-equals the current value. It returns the resulting state.
	Emit(update Update[T]) Snapshot[T]
}

var (
	_ Observable[any] = (*MemoryValue[any])(nil)
	_ Observable[any] = (*StoredValue[any])(nil)
)

// MemoryValue is an in-memory observable value with its own listener registry.
type MemoryValue[T any] struct {
	id    string
	equal func(T, T) bool

	// mu guards current, pending, broadcasting and onCommit.
	mu           sync.Mutex
	current      Snapshot[T]
	pending      []Snapshot[T]
	broadcasting bool

	// onCommit runs under mu for every emission that changed the state.
	// remove is true when the update asked for the value to be absent.
	onCommit func(next Snapshot[T], remove bool)

	// subMu protects subs.
	subMu sync.RWMutex
	subs  []*subscription[T]
}

type subscription[T any] struct {
	fn     Listener[T]
	active atomic.Bool
}

// New creates a MemoryValue. Without WithInitial it starts undetermined.
func New[T any](opts ...Option[T]) *MemoryValue[T] {
	return newMemoryValue(applyOptions(opts))
}

func newMemoryValue[T any](o options[T]) *MemoryValue[T] {
	m := &MemoryValue[T]{
		id:    uuid.NewString(),
		equal: o.equal,
	}
	if o.hasInitial {
		m.current = Snapshot[T]{value: o.initial, state: Present, version: 1}
	}
	return m
}

// ID returns the container's unique identifier.
func (m *MemoryValue[T]) ID() string {
	return m.id
}

// Snapshot returns the current state.
func (m *MemoryValue[T]) Snapshot() Snapshot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers listener. Listeners run in registration order.
func (m *MemoryValue[T]) Subscribe(listener Listener[T]) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	sub := &subscription[T]{fn: listener}
	sub.active.Store(true)

	m.subMu.Lock()
	m.subs = append(m.subs, sub)
	m.subMu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if i := slices.Index(m.subs, sub); i >= 0 {
			m.subs = slices.Delete(m.subs, i, i+1)
		}
	}
}

// Listeners returns the number of registered listeners.
func (m *MemoryValue[T]) Listeners() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subs)
}

// Emit commits the state produced by update and broadcasts it.
//
// If the candidate deep-equals the current value nothing happens and the
// current snapshot is returned. Otherwise the state is updated before any
// listener runs. A broadcast triggered while this container is already
// broadcasting (from a listener or another goroutine) is queued and delivered
// after the running one, so listeners always see commits in order.
func (m *MemoryValue[T]) Emit(update Update[T]) Snapshot[T] {
	next, changed := m.commit(update)
	if changed {
		m.drain()
	}
	return next
}

// commit resolves update against a consistent snapshot. The update runs
// without holding the lock; if another commit lands meanwhile it is resolved
// again against the newer state.
func (m *MemoryValue[T]) commit(update Update[T]) (Snapshot[T], bool) {
	for {
		prev := m.Snapshot()

		candidate := prev
		if update != nil {
			candidate = update(prev)
		}
		remove := candidate.state == Undetermined
		next := resolve(prev, candidate)

		m.mu.Lock()
		if m.current.version != prev.version {
			m.mu.Unlock()
			continue
		}
		if same(prev, next, m.equal) {
			m.mu.Unlock()
			recordDeduplicated()
			return prev, false
		}

		next.version = prev.version + 1
		m.current = next
		m.pending = append(m.pending, next)
		if m.onCommit != nil {
			m.onCommit(next, remove)
		}
		m.mu.Unlock()

		recordEmission()
		return next, true
	}
}

// seed commits snap only if the state is still at version base. It bypasses
// onCommit unless persist is set, in which case onCommit sees the seeded state
// under the same lock. It reports false when a newer emission already
// replaced base.
func (m *MemoryValue[T]) seed(base uint64, snap Snapshot[T], persist bool) bool {
	m.mu.Lock()
	if m.current.version != base {
		m.mu.Unlock()
		return false
	}

	next := resolve(m.current, snap)
	changed := !same(m.current, next, m.equal)
	if changed {
		next.version = base + 1
		m.current = next
		m.pending = append(m.pending, next)
	}
	if persist && m.onCommit != nil {
		m.onCommit(m.current, false)
	}
	m.mu.Unlock()

	if changed {
		recordEmission()
		m.drain()
	}
	return true
}

// setOnCommit installs the commit hook and returns the current version.
func (m *MemoryValue[T]) setOnCommit(fn func(next Snapshot[T], remove bool)) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCommit = fn
	return m.current.version
}

// drain delivers queued broadcasts unless another goroutine already is.
func (m *MemoryValue[T]) drain() {
	m.mu.Lock()
	if m.broadcasting {
		m.mu.Unlock()
		return
	}
	m.broadcasting = true

	for len(m.pending) > 0 {
		snap := m.pending[0]
		m.pending[0] = Snapshot[T]{}
		m.pending = m.pending[1:]
		m.mu.Unlock()

		m.notify(snap)

		m.mu.Lock()
	}

	m.pending = nil
	m.broadcasting = false
	m.mu.Unlock()
}

// notify invokes every listener registered when the broadcast starts.
// Uses copy-before-notify so listeners may (un)subscribe while running.
func (m *MemoryValue[T]) notify(snap Snapshot[T]) {
	m.subMu.RLock()
	subs := make([]*subscription[T], len(m.subs))
	copy(subs, m.subs)
	m.subMu.RUnlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		m.invoke(sub, snap)
	}
}

func (m *MemoryValue[T]) invoke(sub *subscription[T], snap Snapshot[T]) {
	var err error
	if r := panics.Try(func() { err = sub.fn(snap) }); r != nil {
		err = r.AsError()
	}
	if err != nil {
		recordListenerFailure()
		warn("listener failed", "container", m.id, "version", snap.version, "error", err)
	}
}

// resolve turns a candidate into the state that would be committed over prev.
func resolve[T any](prev, candidate Snapshot[T]) Snapshot[T] {
	next := Snapshot[T]{value: candidate.value, state: candidate.state}
	if next.state == Undetermined && prev.state != Undetermined {
		// A determined container never reverts to undetermined.
		next.state = Null
	}
	if next.state != Present {
		var zero T
		next.value = zero
	}
	return next
}
