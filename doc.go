// Package offload executes tasks on a fixed-size worker pool and hands
// results back through futures.
//
// Constructors
//   - NewDispatcher(ctx, opts ...Option): the usual entry point. Wraps a
//     pool and adds batch submission and payload handoff helpers.
//   - NewPool(ctx, opts ...Option): the pool itself, for callers that only
//     need Submit.
//
// Defaults
// Unless overridden by options, a new pool uses:
//   - PoolSize: host core count
//   - QueueCapacity: 0 (unbounded)
//   - QueuePolicy: QueueFIFO
//   - TransferThreshold: 64 KiB
//   - MaxWorkerRestarts: 3
//   - RestartBackoff: 100ms
//
// Scheduling
// Every submission returns a Future immediately; the caller observes the
// outcome through Await, Done, or OnComplete. A single coordinator
// goroutine assigns queued tasks to idle workers in arrival order (or by
// priority with QueuePriority), replaces crashed workers, and degrades the
// pool when crashes repeat past the restart limit.
//
// Payloads
// Buffer tasks carry their input in a Buffer obtained from a BufferPool.
// Submission transfers ownership to the pool either by copy, leaving the
// caller's handle usable, or by move, which invalidates it. TransferAuto
// picks between the two by payload size. A worker hands a processed buffer
// back the same way, by returning the result of Move as the task's value.
package offload
