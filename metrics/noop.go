package metrics

// Noop discards every measurement. It is the default provider.
type Noop struct{}

// NewNoop constructs a Provider that records nothing.
func NewNoop() Noop { return Noop{} }

func (Noop) Counter(string) Counter             { return noopCounter{} }
func (Noop) UpDownCounter(string) UpDownCounter { return noopUpDownCounter{} }
func (Noop) Histogram(string) Histogram         { return noopHistogram{} }

type noopCounter struct{}

func (noopCounter) Add(int64) {}

type noopUpDownCounter struct{}

func (noopUpDownCounter) Add(int64) {}

type noopHistogram struct{}

func (noopHistogram) Record(float64) {}
