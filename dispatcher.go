package offload

import (
	"context"
)

// Dispatcher is the front door of the package: a thin facade over a Pool
// that offers function-first submission, batch submission with ordered
// results, and payload handoff helpers.
type Dispatcher[R any] struct {
	pool *Pool[R]
}

// NewDispatcher creates a dispatcher backed by a freshly started pool.
func NewDispatcher[R any](ctx context.Context, opts ...Option) (*Dispatcher[R], error) {
	p, err := NewPool[R](ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Dispatcher[R]{pool: p}, nil
}

// Submit offloads a single function.
func (d *Dispatcher[R]) Submit(fn Work[R]) (*Future[R], error) {
	return d.pool.Submit(Descriptor[R]{Run: fn})
}

// SubmitDescriptor offloads a fully specified task.
func (d *Dispatcher[R]) SubmitDescriptor(desc Descriptor[R]) (*Future[R], error) {
	return d.pool.Submit(desc)
}

// SubmitBuffer offloads a function together with its payload buffer. The
// handoff follows mode; with TransferMove the caller's handle is invalid
// once the call returns.
func (d *Dispatcher[R]) SubmitBuffer(fn BufferWork[R], payload *Buffer, mode TransferMode) (*Future[R], error) {
	return d.pool.Submit(Descriptor[R]{RunBuffer: fn, Payload: payload, Transfer: mode})
}

// SubmitAll offloads every descriptor and returns a batch handle whose
// outcomes line up index-for-index with descs. A descriptor the pool
// rejects occupies its slot with a failed outcome; the remaining tasks are
// still submitted.
func (d *Dispatcher[R]) SubmitAll(descs []Descriptor[R]) *BatchFuture[R] {
	b := &BatchFuture[R]{
		futures: make([]*Future[R], len(descs)),
		out:     make([]Outcome[R], len(descs)),
		done:    make(chan struct{}),
	}
	for i, desc := range descs {
		f, err := d.pool.Submit(desc)
		if err != nil {
			if desc.ID != "" {
				err = tagTaskError(err, desc.ID)
			}
			b.out[i] = Outcome[R]{Status: StatusFailed, Err: err}
			continue
		}
		b.futures[i] = f
	}
	go b.collect()
	return b
}

// RunAll offloads every function and blocks until all of them have
// resolved or ctx expires. Outcomes line up index-for-index with fns.
func (d *Dispatcher[R]) RunAll(ctx context.Context, fns []Work[R]) ([]Outcome[R], error) {
	descs := make([]Descriptor[R], len(fns))
	for i, fn := range fns {
		descs[i] = Descriptor[R]{Run: fn}
	}
	return d.SubmitAll(descs).Await(ctx)
}

// Stats reports the backing pool's occupancy.
func (d *Dispatcher[R]) Stats() PoolStats { return d.pool.Stats() }

// Buffers returns the backing pool's payload buffer pool.
func (d *Dispatcher[R]) Buffers() *BufferPool { return d.pool.Buffers() }

// Shutdown stops the backing pool and blocks until it has exited.
func (d *Dispatcher[R]) Shutdown(mode ShutdownMode) { d.pool.Shutdown(mode) }

// BatchFuture tracks a SubmitAll batch. Outcomes become readable, in
// submission order, once Done is closed; each task's failure or
// cancellation occupies its own slot without affecting its neighbours.
type BatchFuture[R any] struct {
	futures []*Future[R]
	out     []Outcome[R]
	done    chan struct{}
}

// collect gathers outcomes in submission order. Rejected slots were filled
// at submission time and carry no future.
func (b *BatchFuture[R]) collect() {
	defer close(b.done)
	for i, f := range b.futures {
		if f == nil {
			continue
		}
		<-f.Done()
		if out, ok := f.Outcome(); ok {
			b.out[i] = out
		}
	}
}

// Done is closed once every task in the batch has resolved.
func (b *BatchFuture[R]) Done() <-chan struct{} { return b.done }

// Await blocks until the whole batch has resolved or ctx expires, then
// returns the outcomes in submission order.
func (b *BatchFuture[R]) Await(ctx context.Context) ([]Outcome[R], error) {
	select {
	case <-b.done:
		return b.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcomes returns the batch results once Done is closed, and nil before.
func (b *BatchFuture[R]) Outcomes() []Outcome[R] {
	select {
	case <-b.done:
		return b.out
	default:
		return nil
	}
}

// Cancel requests cancellation of every task in the batch that has not
// resolved yet.
func (b *BatchFuture[R]) Cancel() {
	for _, f := range b.futures {
		if f != nil {
			f.Cancel()
		}
	}
}
