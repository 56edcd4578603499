package offload

import (
	"sync/atomic"

	"github.com/ygrebnov/errorc"
)

// TransferMode selects how a payload buffer is handed to a worker.
type TransferMode int

const (
	// TransferAuto moves payloads at or above the pool's transfer threshold
	// and copies smaller ones.
	TransferAuto TransferMode = iota
	// TransferCopy clones the payload; the submitter's handle stays valid.
	TransferCopy
	// TransferMove transfers ownership without copying; the submitter's
	// handle is invalidated immediately.
	TransferMove
)

func (m TransferMode) String() string {
	switch m {
	case TransferAuto:
		return "auto"
	case TransferCopy:
		return "copy"
	case TransferMove:
		return "move"
	default:
		return "unknown"
	}
}

// Buffer ownership states. A handle starts live and is poisoned forever once
// moved or released; every access checks the flag so a stale handle fails
// deterministically instead of reading reused memory.
const (
	ownerLive int32 = iota
	ownerMoved
	ownerReleased
)

// Buffer is a region of binary payload data with enforced ownership.
// A Buffer has a single owner at any instant. Handles are not safe for
// concurrent use; hand them between goroutines via Move or Clone.
type Buffer struct {
	data  []byte
	state atomic.Int32

	origin *BufferPool // nil for unpooled buffers
	class  int         // size-class index within origin, -1 when unpooled
}

// NewBuffer wraps data in an unpooled live buffer. The caller must not keep
// using data directly afterwards; the buffer owns it.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, class: -1}
}

// Bytes returns the buffer contents. It fails with ErrInvalidOwnership after
// the buffer has been moved away or released.
func (b *Buffer) Bytes() ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return b.data, nil
}

// Len returns the payload length, or 0 for an invalidated handle.
func (b *Buffer) Len() int {
	if b.state.Load() != ownerLive {
		return 0
	}
	return len(b.data)
}

// Valid reports whether this handle still owns its data.
func (b *Buffer) Valid() bool { return b.state.Load() == ownerLive }

// Move transfers ownership to a fresh handle over the same backing array
// (zero copy) and invalidates this one. Any later access through the old
// handle fails with ErrInvalidOwnership.
func (b *Buffer) Move() (*Buffer, error) {
	if !b.state.CompareAndSwap(ownerLive, ownerMoved) {
		return nil, errorc.With(ErrInvalidOwnership, errorc.String("state", b.stateName()))
	}
	nb := &Buffer{data: b.data, origin: b.origin, class: b.class}
	b.data = nil
	return nb, nil
}

// undoMove returns ownership to b after an admission failure: nb, the handle
// a Move on b produced, is poisoned and the backing array comes back to b.
// The caller must hold both handles exclusively.
func (b *Buffer) undoMove(nb *Buffer) {
	if !nb.state.CompareAndSwap(ownerLive, ownerMoved) {
		return
	}
	b.data = nb.data
	nb.data = nil
	b.state.Store(ownerLive)
}

// Clone returns a deep copy, leaving this handle valid. Pooled buffers clone
// from the same pool so the copy returns there on Release.
func (b *Buffer) Clone() (*Buffer, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.origin != nil {
		nb := b.origin.Get(len(b.data))
		copy(nb.data, b.data)
		return nb, nil
	}
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return NewBuffer(data), nil
}

// Release invalidates the handle and, for pooled buffers, returns the backing
// memory to the pool. Releasing an already-invalid handle is an error.
func (b *Buffer) Release() error {
	if !b.state.CompareAndSwap(ownerLive, ownerReleased) {
		return errorc.With(ErrInvalidOwnership, errorc.String("state", b.stateName()))
	}
	if b.origin != nil {
		b.origin.put(b.data, b.class)
	}
	b.data = nil
	return nil
}

func (b *Buffer) check() error {
	if b.state.Load() != ownerLive {
		return errorc.With(ErrInvalidOwnership, errorc.String("state", b.stateName()))
	}
	return nil
}

func (b *Buffer) stateName() string {
	switch b.state.Load() {
	case ownerMoved:
		return "moved"
	case ownerReleased:
		return "released"
	default:
		return "live"
	}
}
