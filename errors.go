package offload

import "errors"

const Namespace = "offload"

var (
	// ErrPoolClosed is returned by submissions made after shutdown has begun.
	ErrPoolClosed = errors.New(Namespace + ": pool is shut down")

	// ErrPoolDegraded is returned once the worker restart limit has been
	// exceeded. The pool stops accepting work and requires external restart.
	ErrPoolDegraded = errors.New(Namespace + ": pool degraded, worker restart limit exceeded")

	// ErrQueueFull is returned when a bounded pending queue is at capacity.
	// The submission is rejected immediately; callers may retry with backoff.
	ErrQueueFull = errors.New(Namespace + ": pending queue is full")

	// ErrWorkerCrash wraps the fault of a worker that terminated unexpectedly
	// while executing a task. The bound task fails; the pool replaces the worker.
	ErrWorkerCrash = errors.New(Namespace + ": worker crashed")

	// ErrTaskCancelled marks outcomes of tasks cancelled before or during execution.
	ErrTaskCancelled = errors.New(Namespace + ": task cancelled")

	// ErrInvalidOwnership is returned on any access to a transfer buffer
	// whose ownership has been moved away or released back to its pool.
	ErrInvalidOwnership = errors.New(Namespace + ": invalid buffer ownership")

	// ErrInvalidDescriptor is returned by Submit for malformed task descriptors.
	ErrInvalidDescriptor = errors.New(Namespace + ": invalid task descriptor")

	// ErrInvalidConfig is returned by constructors for invalid options.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
)
