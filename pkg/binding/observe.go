package binding

import (
	"sync"

	"github.com/vango-dev/memval/pkg/memval"
)

// Observe is a reference consumer of the subscribe-with-snapshot contract.
//
// It renders the current snapshot, subscribes, and re-reads the snapshot
// right after subscribing so a change that landed in between is not missed.
// Afterwards render runs once per observed change. Renders never overlap and
// are skipped when the version did not move, so a burst of notifications that
// all observe the same state renders once. render runs without any lock held
// and may emit on the observed container; the resulting state is rendered
// after render returns.
func Observe[T any](
	subscribe func(onChange func()) func(),
	getSnapshot func() memval.Snapshot[T],
	render func(memval.Snapshot[T]),
) (stop func()) {
	var (
		mu        sync.Mutex
		rendering bool
		dirty     bool
		rendered  bool
		last      uint64
		stopped   bool
	)

	// check renders the latest state. A call arriving while another call is
	// rendering only marks the state dirty; the running call renders again.
	check := func() {
		mu.Lock()
		if rendering {
			dirty = true
			mu.Unlock()
			return
		}
		rendering = true

		for !stopped {
			dirty = false
			mu.Unlock()
			snap := getSnapshot()
			mu.Lock()

			if !stopped && (!rendered || snap.Version() > last) {
				rendered = true
				last = snap.Version()
				mu.Unlock()
				render(snap)
				mu.Lock()
			}
			if !dirty {
				break
			}
		}

		rendering = false
		mu.Unlock()
	}

	check()
	unsubscribe := subscribe(check)
	check()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			unsubscribe()
		})
	}
}
