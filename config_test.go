package imgcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache/internal/fs"
)

func TestMemoryBudget(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want int64
	}{
		{"Default", nil, DefaultMemoryCacheSize},
		{"Absolute", []Option{WithMemoryCacheSize(8 << 20)}, 8 << 20},
		{"AbsoluteAtMinimum", []Option{WithMemoryCacheSize(MinMemoryCacheSize)}, DefaultMemoryCacheSize},
		{"Percent", []Option{WithMemoryCachePercent(0.25, 100<<20)}, 25 << 20},
		{"PercentOutOfRange", []Option{WithMemoryCachePercent(0.9, 100<<20)}, int64(float64(100<<20) * DefaultMemoryCachePercent)},
		{"PercentAtLowerBound", []Option{WithMemoryCachePercent(0.05, 100<<20)}, int64(float64(100<<20) * DefaultMemoryCachePercent)},
		{"PercentWithoutHeap", []Option{WithMemoryCachePercent(0.25, 0)}, DefaultMemoryCacheSize},
		{"AbsoluteWins", []Option{WithMemoryCachePercent(0.25, 100<<20), WithMemoryCacheSize(3 << 20)}, 3 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, memoryBudget(applyOptions(tt.opts)))
		})
	}
}

func TestDiskBudget(t *testing.T) {
	assert.Equal(t, DefaultDiskCacheSize, diskBudget(applyOptions([]Option{WithDiskCache("x", 0)})))
	assert.Equal(t, DefaultDiskCacheSize, diskBudget(applyOptions([]Option{WithDiskCache("x", MinDiskCacheSize)})))
	assert.Equal(t, int64(50<<20), diskBudget(applyOptions([]Option{WithDiskCache("x", 50<<20)})))
}

func TestDiskEnabled(t *testing.T) {
	faulty := fs.NewFaultyFS(nil)

	t.Run("NoDir", func(t *testing.T) {
		ok, err := diskEnabled(applyOptions([]Option{WithFileSystem(faulty)}), DefaultDiskCacheSize)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EnoughSpace", func(t *testing.T) {
		faulty.SetUsableSpace(DefaultDiskCacheSize)
		o := applyOptions([]Option{WithFileSystem(faulty), WithDiskCache(t.TempDir(), 0)})
		ok, err := diskEnabled(o, diskBudget(o))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NotEnoughSpace", func(t *testing.T) {
		faulty.SetUsableSpace(DefaultDiskCacheSize - 1)
		o := applyOptions([]Option{WithFileSystem(faulty), WithDiskCache(t.TempDir(), 0)})
		ok, err := diskEnabled(o, diskBudget(o))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Unreadable", func(t *testing.T) {
		o := applyOptions([]Option{WithFileSystem(statfsError{faulty}), WithDiskCache(t.TempDir(), 0)})
		_, err := diskEnabled(o, diskBudget(o))
		assert.Error(t, err)
	})
}

type statfsError struct{ fs.FileSystem }

func (statfsError) UsableSpace(string) (int64, error) { return 0, errors.New("statfs failed") }

func TestApplyOptionsDefaults(t *testing.T) {
	o := applyOptions(nil)
	assert.Equal(t, DefaultRetries, o.retries)
	assert.Equal(t, DefaultRetryBackoff, o.retryBackoff)
	assert.True(t, o.decodeSizeCalculation)
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.metricsCollector)
	assert.NotNil(t, o.fs)
	assert.NotNil(t, o.diskCodec)

	o = applyOptions([]Option{WithLogger(nil), WithMetricsCollector(nil), WithRetries(-3)})
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.metricsCollector)
	assert.GreaterOrEqual(t, o.retries, 0)
}
