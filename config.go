package offload

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/offloadq/offload/metrics"
)

// config carries every tunable of a pool. Values are filled from struct tag
// defaults and then overridden by options.
type config struct {
	// PoolSize is the number of workers. Zero selects the host core count.
	PoolSize int `default:"0"`

	// QueueCapacity bounds the pending queue. Zero means unbounded.
	QueueCapacity int `default:"0"`

	// QueuePolicy selects the pending-queue ordering.
	QueuePolicy QueuePolicy `default:"0"`

	// TransferThreshold is the payload size, in bytes, at or above which
	// TransferAuto hands payloads off by move instead of copy.
	TransferThreshold int `default:"65536"`

	// MaxWorkerRestarts is the number of consecutive crashes tolerated
	// before the pool degrades.
	MaxWorkerRestarts int `default:"3"`

	// RestartBackoff is the initial delay before respawning a worker when
	// crashes repeat. It grows exponentially within a streak.
	RestartBackoff time.Duration `default:"100ms"`

	// RateLimit throttles task starts across the pool. Zero disables it.
	RateLimit rate.Limit
	RateBurst int

	Logger  *zap.Logger
	Metrics metrics.Provider
	Buffers *BufferPool
}

// Option mutates the pool configuration. Options validate their input and
// return an error wrapping ErrInvalidConfig when it is out of range.
type Option func(*config) error

func newConfig(opts ...Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	return cfg, nil
}
