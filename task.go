package offload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"
)

// Work is the canonical unit of CPU-bound work. It receives the task's context
// (cancelled on Future.Cancel, pool shutdown, or descriptor timeout) and
// returns a result of type R or an error.
type Work[R any] func(ctx context.Context) (R, error)

// BufferWork is a unit of work over a transfer buffer. The payload handle is
// owned by the executing worker; the submitter's handle was either cloned
// (copy mode) or invalidated (move mode) at submission time.
type BufferWork[R any] func(ctx context.Context, payload *Buffer) (R, error)

// Descriptor describes one submission. Exactly one of Run or RunBuffer must be
// set; RunBuffer additionally requires a Payload.
type Descriptor[R any] struct {
	// ID correlates the task across futures, errors and logs.
	// Left empty, a random UUID is assigned at submission.
	ID string

	Run       Work[R]
	RunBuffer BufferWork[R]

	// Payload is handed to RunBuffer by copy or by ownership transfer,
	// according to Transfer and the pool's transfer threshold.
	Payload  *Buffer
	Transfer TransferMode

	// Priority orders the task within a priority pending queue
	// (lower runs first). Ignored under the default FIFO policy.
	Priority int

	// Timeout bounds execution; zero means no per-task deadline.
	Timeout time.Duration
}

// Status is a task's lifecycle state. Transitions are monotonic:
// Queued -> Running -> one of the terminal states, with Queued -> Cancelled
// for tasks cancelled before assignment.
type Status int32

const (
	StatusQueued Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool { return s >= StatusCompleted }

// task is the pool-internal representation of one submission.
// The status field is the single source of truth for the lifecycle; all
// transitions go through CAS so that cancellation, completion and shutdown
// cannot double-resolve the future.
type task[R any] struct {
	id       string
	seq      uint64
	priority int

	fn      Work[R]
	payload *Buffer // worker-owned handle for buffer tasks, nil otherwise

	future *Future[R]

	ctx    context.Context
	cancel context.CancelFunc

	status atomic.Int32
}

// validateDescriptor checks a descriptor's shape without touching its
// payload, so rejection can happen before any ownership handoff.
func validateDescriptor[R any](desc Descriptor[R]) error {
	if desc.Run == nil && desc.RunBuffer == nil {
		return errorc.With(ErrInvalidDescriptor, errorc.String("", "either Run or RunBuffer must be set"))
	}
	if desc.Run != nil && desc.RunBuffer != nil {
		return errorc.With(ErrInvalidDescriptor, errorc.String("", "Run and RunBuffer are mutually exclusive"))
	}
	if desc.RunBuffer != nil && desc.Payload == nil {
		return errorc.With(ErrInvalidDescriptor, errorc.String("", "RunBuffer requires a Payload"))
	}
	if desc.Run != nil && desc.Payload != nil {
		return errorc.With(ErrInvalidDescriptor, errorc.String("", "Payload requires RunBuffer"))
	}
	return nil
}

// newTask normalizes a descriptor into an internal task bound to parent.
// Buffer handoff (copy vs move) already happened by the time this is called.
func newTask[R any](parent context.Context, desc Descriptor[R], payload *Buffer) (*task[R], error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	id := desc.ID
	if id == "" {
		id = uuid.NewString()
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if desc.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, desc.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	t := &task[R]{
		id:       id,
		priority: desc.Priority,
		payload:  payload,
		ctx:      ctx,
		cancel:   cancel,
	}

	if desc.Run != nil {
		t.fn = desc.Run
	} else {
		fn := desc.RunBuffer
		t.fn = func(c context.Context) (R, error) { return fn(c, payload) }
	}

	t.future = newFuture[R](id, &t.status)
	return t, nil
}

// transition attempts the from -> to lifecycle step.
// It returns false when another path already moved the task out of `from`.
func (t *task[R]) transition(from, to Status) bool {
	return t.status.CompareAndSwap(int32(from), int32(to))
}

// Status returns the task's current lifecycle state.
func (t *task[R]) Status() Status { return Status(t.status.Load()) }

// releasePayload returns a still-live payload handle to its pool. Called on
// paths where the task will never run (cancellation, degradation, shutdown).
func (t *task[R]) releasePayload() {
	if t.payload != nil && t.payload.Valid() {
		_ = t.payload.Release()
	}
}
