package memval

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/vango-dev/memval/pkg/storage"
)

var errNoStore = errors.New("no storage backend configured")

// StoredValue is an observable value mirrored to one storage slot.
//
// It is readable immediately: the initial value (or undetermined) until
// hydration settles, then whatever storage held. Hydration runs once in the
// background. Every emission accepted afterwards, and every emission accepted
// before hydration finished, is written back asynchronously in commit order.
// Storage failures are reported on the warning channel and never affect the
// in-memory state, which is always the source of truth for reads.
//
// A storage key must be owned by a single live StoredValue.
type StoredValue[T any] struct {
	key     string
	store   storage.Store
	codec   Codec
	timeout time.Duration

	memory *MemoryValue[T]
	writes *writeBack
	ready  chan struct{}
}

// NewStored creates a StoredValue for key on store and starts hydrating it.
// It never blocks and never fails; storage problems surface as warnings.
func NewStored[T any](store storage.Store, key string, opts ...Option[T]) *StoredValue[T] {
	return newStored(store, key, applyOptions(opts))
}

// NewSecureStored is NewStored for values that must be sealed at rest.
func NewSecureStored[T any](store storage.SecureStore, key string, opts ...Option[T]) *StoredValue[T] {
	var s storage.Store
	if store != nil {
		s = store
	}
	return newStored(s, key, applyOptions(opts))
}

func newStored[T any](store storage.Store, key string, o options[T]) *StoredValue[T] {
	s := &StoredValue[T]{
		key:     key,
		store:   store,
		codec:   o.codec,
		timeout: o.timeout,
		memory:  newMemoryValue(o),
		writes:  newWriteBack(store, key, o.timeout),
		ready:   make(chan struct{}),
	}

	base := s.memory.setOnCommit(s.mirror)

	var initial *T
	if o.hasInitial {
		v := o.initial
		initial = &v
	}
	go s.hydrate(base, initial)

	return s
}

// Key returns the storage key.
func (s *StoredValue[T]) Key() string {
	return s.key
}

// ID returns the unique identifier of the in-memory container.
func (s *StoredValue[T]) ID() string {
	return s.memory.ID()
}

// Snapshot returns the current in-memory state.
func (s *StoredValue[T]) Snapshot() Snapshot[T] {
	return s.memory.Snapshot()
}

// Subscribe registers a listener on the in-memory container.
func (s *StoredValue[T]) Subscribe(listener Listener[T]) Unsubscribe {
	return s.memory.Subscribe(listener)
}

// Emit commits update in memory and, if the state changed, queues a write of
// the new value (or a delete of the slot for Absent) before broadcasting.
// It never waits for storage.
func (s *StoredValue[T]) Emit(update Update[T]) Snapshot[T] {
	return s.memory.Emit(update)
}

// Ready is closed once hydration has settled, successfully or not.
func (s *StoredValue[T]) Ready() <-chan struct{} {
	return s.ready
}

// Hydrated reports whether hydration has settled.
func (s *StoredValue[T]) Hydrated() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Flush waits for queued write-backs to be applied.
func (s *StoredValue[T]) Flush(ctx context.Context) error {
	return s.writes.flush(ctx)
}

// Settle waits for hydration and then for queued write-backs.
func (s *StoredValue[T]) Settle(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Flush(ctx)
}

// mirror queues the write-back for a committed emission. It runs under the
// container lock, so queue order is commit order.
func (s *StoredValue[T]) mirror(next Snapshot[T], remove bool) {
	if remove {
		s.writes.enqueue(writeOp{remove: true})
		return
	}

	data, err := encodeSnapshot(s.codec, next)
	if err != nil {
		recordWriteback("set", err)
		warn("value could not be encoded, not persisted", "key", s.key, "codec", s.codec.Name(), "error", err)
		return
	}
	s.writes.enqueue(writeOp{data: data})
}

// hydrate loads the slot once and seeds the container.
//
// Seeding bypasses mirror so the value just read is not written back; only an
// initial value standing in for an empty slot is persisted. If a consumer
// emitted before the read completed, that emission wins and the seed is
// dropped.
func (s *StoredValue[T]) hydrate(base uint64, initial *T) {
	defer close(s.ready)

	stored, err := s.read()
	result := "empty"

	switch {
	case err == nil && stored.Present():
		result = "stored"
		s.memory.seed(base, stored, false)
	case initial != nil:
		// Populate the slot going forward.
		result = "initial"
		s.memory.seed(base, Some(*initial), true)
	default:
		s.memory.seed(base, None[T](), false)
	}

	if err != nil {
		result = "error"
	}
	recordHydration(result)
}

// read fetches and decodes the slot. An absent slot or a stored null returns
// a non-present snapshot and no error.
func (s *StoredValue[T]) read() (Snapshot[T], error) {
	if s.store == nil {
		warn("storage read failed", "key", s.key, "error", errNoStore)
		return Snapshot[T]{}, errNoStore
	}

	ctx, cancel := operationContext(s.timeout)
	defer cancel()

	var (
		data []byte
		err  error
	)
	if r := panics.Try(func() { data, err = s.store.Get(ctx, s.key) }); r != nil {
		err = r.AsError()
	}
	if err != nil {
		warn("storage read failed", "key", s.key, "error", err)
		return Snapshot[T]{}, err
	}
	if data == nil {
		return Snapshot[T]{}, nil
	}

	snap, err := decodeSnapshot[T](s.codec, data)
	if err != nil {
		warn("stored value could not be decoded", "key", s.key, "codec", s.codec.Name(), "error", err)
		return Snapshot[T]{}, err
	}
	return snap, nil
}
