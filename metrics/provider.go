// Package metrics defines the instrument surface the pool records into.
// Implementations must be safe for concurrent use.
package metrics

// Provider constructs named instruments. Asking for the same name twice
// returns the same instrument.
type Provider interface {
	Counter(name string) Counter
	UpDownCounter(name string) UpDownCounter
	Histogram(name string) Histogram
}

// Counter records monotonic counts.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records values that move both ways, such as queue depth.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram records a distribution of float64 measurements, such as task
// durations in seconds.
type Histogram interface {
	Record(v float64)
}
