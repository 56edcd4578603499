package offload

import (
	"context"
	"sync"
	"sync/atomic"
)

// Outcome is the terminal result of one task: its final status plus either a
// value (Completed) or an error (Failed, Cancelled).
type Outcome[R any] struct {
	Status Status
	Value  R
	Err    error
}

// Future is a single-resolution handle for a submitted task. The pool resolves
// it exactly once, whether the task completes, fails, is cancelled, or the
// pool shuts down or degrades while the task is pending.
type Future[R any] struct {
	id     string
	status *atomic.Int32

	done chan struct{}

	mu        sync.Mutex
	out       Outcome[R]
	resolved  bool
	callbacks []func(Outcome[R])

	// cancelFn is installed by the pool at admission; it requests queued-task
	// removal and cancels the task's context for the running case.
	cancelFn func()
}

func newFuture[R any](id string, status *atomic.Int32) *Future[R] {
	return &Future[R]{id: id, status: status, done: make(chan struct{})}
}

// ID returns the task ID this future tracks.
func (f *Future[R]) ID() string { return f.id }

// Status returns the tracked task's current lifecycle state.
func (f *Future[R]) Status() Status { return Status(f.status.Load()) }

// Done returns a channel closed when the future resolves.
func (f *Future[R]) Done() <-chan struct{} { return f.done }

// Await blocks until the future resolves or ctx is done. A ctx error leaves
// the future untouched; the task keeps running and may be awaited again.
func (f *Future[R]) Await(ctx context.Context) (Outcome[R], error) {
	select {
	case <-f.done:
		return f.out, nil
	case <-ctx.Done():
		return Outcome[R]{}, ctx.Err()
	}
}

// Outcome returns the resolved outcome, if any, without blocking.
func (f *Future[R]) Outcome() (Outcome[R], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out, f.resolved
}

// OnComplete registers cb to run once the future resolves. Callbacks run on a
// detached goroutine in registration order; a callback registered after
// resolution runs immediately on its own goroutine.
func (f *Future[R]) OnComplete(cb func(Outcome[R])) {
	if cb == nil {
		return
	}
	f.mu.Lock()
	if f.resolved {
		out := f.out
		f.mu.Unlock()
		go cb(out)
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Cancel requests cancellation: a still-queued task is removed and resolves
// Cancelled; a running task has its context cancelled (best effort, the
// computation may not be preemptible). Cancel after resolution is a no-op.
func (f *Future[R]) Cancel() {
	if f.cancelFn != nil {
		f.cancelFn()
	}
}

// resolve delivers the outcome exactly once. Later calls report false and
// change nothing, which is what absorbs late worker results after an
// immediate shutdown already resolved the future Cancelled.
func (f *Future[R]) resolve(out Outcome[R]) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.out = out
	f.resolved = true
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	close(f.done)
	if len(cbs) > 0 {
		go func() {
			for _, cb := range cbs {
				cb(out)
			}
		}()
	}
	return true
}
