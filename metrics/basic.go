package metrics

import (
	"sync"
	"sync/atomic"
)

// Basic is an in-memory Provider suitable for tests, examples, and
// lightweight applications. Instruments are created on first use and reused
// for the same name; snapshots expose their current values.
type Basic struct {
	counters   registry[*BasicCounter]
	updowns    registry[*BasicUpDownCounter]
	histograms registry[*BasicHistogram]
}

// NewBasic constructs an in-memory provider.
func NewBasic() *Basic {
	return &Basic{
		counters:   registry[*BasicCounter]{make: func() *BasicCounter { return &BasicCounter{} }},
		updowns:    registry[*BasicUpDownCounter]{make: func() *BasicUpDownCounter { return &BasicUpDownCounter{} }},
		histograms: registry[*BasicHistogram]{make: func() *BasicHistogram { return &BasicHistogram{} }},
	}
}

func (b *Basic) Counter(name string) Counter             { return b.counters.get(name) }
func (b *Basic) UpDownCounter(name string) UpDownCounter { return b.updowns.get(name) }
func (b *Basic) Histogram(name string) Histogram         { return b.histograms.get(name) }

// CounterValue returns the current value of a counter, or zero when the
// instrument was never used.
func (b *Basic) CounterValue(name string) int64 {
	if c := b.counters.lookup(name); c != nil {
		return c.Snapshot()
	}
	return 0
}

// UpDownValue returns the current value of an up/down counter, or zero when
// the instrument was never used.
func (b *Basic) UpDownValue(name string) int64 {
	if u := b.updowns.lookup(name); u != nil {
		return u.Snapshot()
	}
	return 0
}

// HistogramValue returns a snapshot of a histogram. A never-used instrument
// yields a zero snapshot.
func (b *Basic) HistogramValue(name string) HistSnapshot {
	if h := b.histograms.lookup(name); h != nil {
		return h.Snapshot()
	}
	return HistSnapshot{}
}

// registry holds instruments by name, creating each one exactly once.
type registry[T any] struct {
	mu   sync.Mutex
	m    map[string]T
	make func() T
}

func (r *registry[T]) get(name string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]T)
	}
	if v, ok := r.m[name]; ok {
		return v
	}
	v := r.make()
	r.m[name] = v
	return v
}

func (r *registry[T]) lookup(name string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[name]
}

// BasicCounter is a thread-safe monotonic counter.
type BasicCounter struct {
	val atomic.Int64
}

func (c *BasicCounter) Add(n int64) { c.val.Add(n) }

// Snapshot returns the current value.
func (c *BasicCounter) Snapshot() int64 { return c.val.Load() }

// BasicUpDownCounter is a thread-safe up/down counter.
type BasicUpDownCounter struct {
	val atomic.Int64
}

func (u *BasicUpDownCounter) Add(n int64) { u.val.Add(n) }

// Snapshot returns the current value.
func (u *BasicUpDownCounter) Snapshot() int64 { return u.val.Load() }

// BasicHistogram tracks count, sum, min, and max of recorded measurements.
// It keeps no buckets; it is a lightweight aggregator, not a full histogram.
type BasicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	if h.count == 0 {
		h.min, h.max = v, v
	} else {
		if v < h.min {
			h.min = v
		}
		if v > h.max {
			h.max = v
		}
	}
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// HistSnapshot is an immutable view of a BasicHistogram.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Snapshot returns the histogram state at the time of call.
func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	s := HistSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
	h.mu.Unlock()
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s
}
