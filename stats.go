package imgcache

import (
	"github.com/hupe1980/imgcache/internal/cache"
	"github.com/hupe1980/imgcache/internal/task"
)

// CacheStats is a snapshot of one cache tier.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Puts      int64
	Evictions int64
	Size      int64
	MaxSize   int64
	Len       int
}

// PoolStats is a snapshot of a worker pool.
type PoolStats struct {
	Workers   int
	Queued    int
	Completed int64
	Discarded int64
}

// Stats is a snapshot of the loader state.
type Stats struct {
	Memory CacheStats
	// MemoryUsage is the decoded pixel bytes held by the memory cache and
	// MemoryLimit the cap set with WithMemoryLimit, 0 if none.
	MemoryUsage int64
	MemoryLimit int64
	Disk        CacheStats
	DiskEnabled bool
	DiskDir     string
	Paused      bool
	CachePool   PoolStats
	NetworkPool PoolStats
}

// Stats returns a snapshot of cache and pool counters.
func (l *Loader) Stats() Stats {
	s := Stats{
		Memory:      cacheStats(l.memory.Stats()),
		MemoryUsage: l.rc.MemoryUsage(),
		MemoryLimit: l.rc.MemoryLimit(),
		Paused:      l.gate.isPaused(),
		CachePool:   poolStats(l.engine.CachePool().Stats()),
		NetworkPool: poolStats(l.engine.NetworkPool().Stats()),
	}
	if l.disk != nil {
		s.DiskEnabled = true
		s.DiskDir = l.disk.Dir()
		s.Disk = cacheStats(l.disk.Stats())
	}
	return s
}

func cacheStats(s cache.Stats) CacheStats {
	return CacheStats{
		Hits:      s.Hits,
		Misses:    s.Misses,
		Puts:      s.Puts,
		Evictions: s.Evictions,
		Size:      s.Size,
		MaxSize:   s.MaxSize,
		Len:       s.Len,
	}
}

func poolStats(s task.PoolStats) PoolStats {
	return PoolStats{
		Workers:   s.Workers,
		Queued:    s.Queued,
		Completed: s.Completed,
		Discarded: s.Discarded,
	}
}
