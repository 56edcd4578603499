package offload

import (
	"sync"
	"sync/atomic"
)

// Power-of-two size classes for pooled payload buffers, 2 KiB through 1 MiB.
// Requests above the largest class fall back to unpooled allocations.
var bufferClasses = [...]int{
	2 << 10,
	4 << 10,
	8 << 10,
	16 << 10,
	32 << 10,
	64 << 10,
	128 << 10,
	256 << 10,
	512 << 10,
	1 << 20,
}

// classFor returns the index of the smallest class holding size bytes,
// or -1 when the request exceeds the largest class.
func classFor(size int) int {
	for i, c := range bufferClasses {
		if size <= c {
			return i
		}
	}
	return -1
}

// BufferPool recycles payload memory across submissions using size-class
// freelists. It is safe for concurrent use. The pool only manages memory;
// ownership of individual buffers is enforced by the Buffer handles it hands
// out.
type BufferPool struct {
	classes [len(bufferClasses)]sync.Pool

	allocated atomic.Int64
	reused    atomic.Int64
	inUse     atomic.Int64
}

// NewBufferPool constructs an empty pool. Freelists fill as buffers are
// released.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns a live buffer of exactly size bytes, recycled from the matching
// size class when possible.
func (p *BufferPool) Get(size int) *Buffer {
	class := classFor(size)
	if class < 0 {
		p.allocated.Add(1)
		p.inUse.Add(1)
		return &Buffer{data: make([]byte, size), origin: p, class: -1}
	}

	var data []byte
	if v := p.classes[class].Get(); v != nil {
		data = v.([]byte)[:size]
		p.reused.Add(1)
	} else {
		data = make([]byte, bufferClasses[class])[:size]
		p.allocated.Add(1)
	}
	p.inUse.Add(1)
	return &Buffer{data: data, origin: p, class: class}
}

// put returns backing memory to its size-class freelist. Called by
// Buffer.Release only; oversize buffers are dropped for the GC.
func (p *BufferPool) put(data []byte, class int) {
	p.inUse.Add(-1)
	if class < 0 {
		return
	}
	p.classes[class].Put(data[:cap(data)])
}

// BufferPoolStats aggregates allocation accounting for observability.
type BufferPoolStats struct {
	TotalAlloc int64 // buffers backed by fresh allocations
	TotalReuse int64 // buffers served from a freelist
	InUse      int64 // live handles not yet moved into other handles or released
}

// Stats returns a point-in-time snapshot of the pool's accounting.
func (p *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		TotalAlloc: p.allocated.Load(),
		TotalReuse: p.reused.Load(),
		InUse:      p.inUse.Load(),
	}
}
