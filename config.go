package imgcache

import (
	"time"

	"github.com/hupe1980/imgcache/renderable"
)

const (
	// DefaultMemoryCacheSize is used when no valid memory budget is given.
	DefaultMemoryCacheSize int64 = 5 << 20
	// MinMemoryCacheSize is the exclusive lower bound of an absolute budget.
	MinMemoryCacheSize int64 = 2 << 20
	// DefaultMemoryCachePercent replaces an out-of-range percentage.
	DefaultMemoryCachePercent = 0.15

	minMemoryCachePercent = 0.05
	maxMemoryCachePercent = 0.8

	// DefaultDiskCacheSize is used when the disk budget is not above
	// MinDiskCacheSize.
	DefaultDiskCacheSize int64 = 20 << 20
	// MinDiskCacheSize is the exclusive lower bound of a disk budget.
	MinDiskCacheSize int64 = 5 << 20

	// DefaultRetries is the number of network retries after the first attempt.
	DefaultRetries = 1
	// DefaultRetryBackoff is the initial backoff interval between attempts.
	DefaultRetryBackoff = 100 * time.Millisecond
	// DefaultGraceDelay mirrors renderable.DefaultGraceDelay.
	DefaultGraceDelay = renderable.DefaultGraceDelay

	// PrefetchAttempts bounds the attempts of a single Prefetch.
	PrefetchAttempts = 3
)

// memoryBudget resolves the memory cache budget. An absolute size wins when
// valid, then a percentage of heapBytes, then the default.
func memoryBudget(o options) int64 {
	if o.memorySize > MinMemoryCacheSize {
		return o.memorySize
	}
	if o.heapBytes > 0 {
		p := o.memoryPercent
		if p <= minMemoryCachePercent || p >= maxMemoryCachePercent {
			p = DefaultMemoryCachePercent
		}
		if b := int64(float64(o.heapBytes) * p); b > 0 {
			return b
		}
	}
	return DefaultMemoryCacheSize
}

// diskBudget resolves the persistent cache budget.
func diskBudget(o options) int64 {
	if o.diskSize > MinDiskCacheSize {
		return o.diskSize
	}
	return DefaultDiskCacheSize
}

// diskEnabled reports whether the persistent cache can be used: a directory
// is configured and the volume holding it has room for the whole budget.
func diskEnabled(o options, budget int64) (bool, error) {
	if o.diskDir == "" {
		return false, nil
	}
	if err := o.fs.MkdirAll(o.diskDir, 0o755); err != nil {
		return false, err
	}
	free, err := o.fs.UsableSpace(o.diskDir)
	if err != nil {
		return false, err
	}
	return free >= budget, nil
}
