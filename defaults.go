package offload

import (
	"runtime"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/offloadq/offload/metrics"
)

func defaultConfig() config {
	var cfg config
	if err := defaults.Set(&cfg); err != nil {
		// Tags are static; Set only fails on a malformed tag.
		panic(err)
	}
	return cfg
}

func (c config) effectivePoolSize() int {
	if c.PoolSize > 0 {
		return c.PoolSize
	}
	return runtime.NumCPU()
}

func (c config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c config) metricsProvider() metrics.Provider {
	if c.Metrics != nil {
		return c.Metrics
	}
	return metrics.NewNoop()
}

func (c config) bufferPool() *BufferPool {
	if c.Buffers != nil {
		return c.Buffers
	}
	return NewBufferPool()
}

func (c config) rateBurst() int {
	if c.RateBurst > 0 {
		return c.RateBurst
	}
	return 1
}
