package memval

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/vango-dev/memval/pkg/storage"
)

// writeOp is one queued storage mutation.
type writeOp struct {
	remove bool
	data   []byte
}

func (op writeOp) name() string {
	if op.remove {
		return "delete"
	}
	return "set"
}

// writeBack mirrors emissions to one storage slot. Operations are applied in
// the order they were queued by a single background goroutine, started on
// demand and exiting when the queue is empty. Enqueue never blocks on I/O.
type writeBack struct {
	store   storage.Store
	key     string
	timeout time.Duration

	mu      sync.Mutex
	queue   []writeOp
	running bool
	idle    chan struct{} // closed while nothing is queued or running
}

func newWriteBack(store storage.Store, key string, timeout time.Duration) *writeBack {
	idle := make(chan struct{})
	close(idle)
	return &writeBack{
		store:   store,
		key:     key,
		timeout: timeout,
		idle:    idle,
	}
}

func (w *writeBack) enqueue(op writeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.queue = append(w.queue, op)
	if w.running {
		return
	}
	w.running = true
	w.idle = make(chan struct{})
	go w.run()
}

func (w *writeBack) run() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.running = false
			close(w.idle)
			w.mu.Unlock()
			return
		}
		op := w.queue[0]
		w.queue[0] = writeOp{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.apply(op)
	}
}

// apply runs one operation. Failures are reported and otherwise ignored.
func (w *writeBack) apply(op writeOp) {
	var err error
	if r := panics.Try(func() { err = w.do(op) }); r != nil {
		err = r.AsError()
	}
	recordWriteback(op.name(), err)
	if err != nil {
		warn("storage write failed", "key", w.key, "op", op.name(), "error", err)
	}
}

func (w *writeBack) do(op writeOp) error {
	if w.store == nil {
		return errNoStore
	}
	ctx, cancel := operationContext(w.timeout)
	defer cancel()

	if op.remove {
		return w.store.Delete(ctx, w.key)
	}
	return w.store.Set(ctx, w.key, op.data)
}

// flush waits until the queue is empty and no operation is running.
func (w *writeBack) flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		idle := w.idle
		w.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}

		w.mu.Lock()
		done := !w.running && len(w.queue) == 0
		w.mu.Unlock()
		if done {
			return nil
		}
	}
}

func operationContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}
