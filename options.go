package offload

import (
	"time"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/offloadq/offload/metrics"
)

// WithPoolSize sets the number of workers. Zero selects the host core count.
func WithPoolSize(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "pool size cannot be negative"))
		}
		c.PoolSize = n
		return nil
	}
}

// WithQueueCapacity bounds the pending queue; submissions beyond the bound
// fail with ErrQueueFull. Zero leaves the queue unbounded.
func WithQueueCapacity(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "queue capacity cannot be negative"))
		}
		c.QueueCapacity = n
		return nil
	}
}

// WithQueuePolicy selects the pending-queue ordering.
func WithQueuePolicy(p QueuePolicy) Option {
	return func(c *config) error {
		if p != QueueFIFO && p != QueuePriority {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "unknown queue policy"))
		}
		c.QueuePolicy = p
		return nil
	}
}

// WithTransferThreshold sets the payload size, in bytes, at or above which
// TransferAuto moves payloads instead of copying them.
func WithTransferThreshold(bytes int) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "transfer threshold must be positive"))
		}
		c.TransferThreshold = bytes
		return nil
	}
}

// WithMaxWorkerRestarts sets how many consecutive worker crashes are
// tolerated before the pool degrades. Zero degrades on the first crash.
func WithMaxWorkerRestarts(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "max worker restarts cannot be negative"))
		}
		c.MaxWorkerRestarts = n
		return nil
	}
}

// WithRestartBackoff sets the initial respawn delay applied when worker
// crashes repeat.
func WithRestartBackoff(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "restart backoff must be positive"))
		}
		c.RestartBackoff = d
		return nil
	}
}

// WithRateLimit throttles task starts across the whole pool.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *config) error {
		if limit <= 0 || burst <= 0 {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "rate limit and burst must be positive"))
		}
		c.RateLimit = limit
		c.RateBurst = burst
		return nil
	}
}

// WithLogger attaches a logger. The pool is silent by default.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "logger cannot be nil"))
		}
		c.Logger = l
		return nil
	}
}

// WithMetrics attaches a metrics provider. Instruments are no-ops by default.
func WithMetrics(p metrics.Provider) Option {
	return func(c *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "metrics provider cannot be nil"))
		}
		c.Metrics = p
		return nil
	}
}

// WithBufferPool shares a payload buffer pool between pools or with the
// caller's own allocation sites.
func WithBufferPool(bp *BufferPool) Option {
	return func(c *config) error {
		if bp == nil {
			return errorc.With(ErrInvalidConfig,
				errorc.String("option", "buffer pool cannot be nil"))
		}
		c.Buffers = bp
		return nil
	}
}
