package offload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()

	require.Equal(t, 0, cfg.PoolSize)
	require.Equal(t, 0, cfg.QueueCapacity)
	require.Equal(t, QueueFIFO, cfg.QueuePolicy)
	require.Equal(t, 64<<10, cfg.TransferThreshold)
	require.Equal(t, 3, cfg.MaxWorkerRestarts)
	require.Equal(t, 100*time.Millisecond, cfg.RestartBackoff)
	require.Positive(t, cfg.effectivePoolSize())
}

func TestNewConfig_AppliesOptions(t *testing.T) {
	cfg, err := newConfig(
		WithPoolSize(4),
		WithQueueCapacity(16),
		WithQueuePolicy(QueuePriority),
		WithTransferThreshold(1024),
		WithMaxWorkerRestarts(1),
		WithRestartBackoff(time.Second),
	)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.PoolSize)
	require.Equal(t, 4, cfg.effectivePoolSize())
	require.Equal(t, 16, cfg.QueueCapacity)
	require.Equal(t, QueuePriority, cfg.QueuePolicy)
	require.Equal(t, 1024, cfg.TransferThreshold)
	require.Equal(t, 1, cfg.MaxWorkerRestarts)
	require.Equal(t, time.Second, cfg.RestartBackoff)
}

func TestNewConfig_InvalidOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"negative pool size":      WithPoolSize(-1),
		"negative queue capacity": WithQueueCapacity(-1),
		"unknown queue policy":    WithQueuePolicy(QueuePolicy(9)),
		"zero threshold":          WithTransferThreshold(0),
		"negative restarts":       WithMaxWorkerRestarts(-1),
		"zero backoff":            WithRestartBackoff(0),
		"zero rate":               WithRateLimit(0, 1),
		"zero burst":              WithRateLimit(1, 0),
		"nil logger":              WithLogger(nil),
		"nil metrics":             WithMetrics(nil),
		"nil buffer pool":         WithBufferPool(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newConfig(opt)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewConfig_NilOptionIsIgnored(t *testing.T) {
	cfg, err := newConfig(nil, WithPoolSize(2))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.PoolSize)
}

func TestConfig_Fallbacks(t *testing.T) {
	cfg := defaultConfig()

	require.NotNil(t, cfg.logger())
	require.NotNil(t, cfg.metricsProvider())
	require.NotNil(t, cfg.bufferPool())
	require.Equal(t, 1, cfg.rateBurst())

	l := zap.NewNop()
	cfg.Logger = l
	require.Same(t, l, cfg.logger())
}
