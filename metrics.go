package imgcache

import (
	"sync/atomic"
	"time"
)

// Tier names a cache level in metrics.
type Tier string

const (
	TierMemory Tier = "memory"
	TierDisk   Tier = "disk"
)

// Source names where a loaded resource came from.
type Source int

const (
	SourceNone Source = iota
	SourceMemory
	SourceDisk
	SourceNetwork
)

func (s Source) String() string {
	switch s {
	case SourceMemory:
		return "memory"
	case SourceDisk:
		return "disk"
	case SourceNetwork:
		return "network"
	default:
		return "none"
	}
}

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordCacheLookup is called for every memory or disk lookup.
	RecordCacheLookup(tier Tier, hit bool)

	// RecordFetch is called after each network attempt. bytes is the
	// payload size on success.
	RecordFetch(duration time.Duration, bytes int64, err error)

	// RecordDecode is called after each decode.
	RecordDecode(duration time.Duration, err error)

	// RecordLoad is called once per load that reached a result. Cancelled
	// and stale loads are not recorded.
	RecordLoad(source Source, duration time.Duration, err error)

	// RecordDiscard is called when the cache pool drops a queued load.
	RecordDiscard()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCacheLookup(Tier, bool)            {}
func (NoopMetricsCollector) RecordFetch(time.Duration, int64, error) {}
func (NoopMetricsCollector) RecordDecode(time.Duration, error)       {}
func (NoopMetricsCollector) RecordLoad(Source, time.Duration, error) {}
func (NoopMetricsCollector) RecordDiscard()                          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests.
type BasicMetricsCollector struct {
	MemoryHits     atomic.Int64
	MemoryMisses   atomic.Int64
	DiskHits       atomic.Int64
	DiskMisses     atomic.Int64
	FetchCount     atomic.Int64
	FetchErrors    atomic.Int64
	FetchBytes     atomic.Int64
	FetchNanos     atomic.Int64
	DecodeCount    atomic.Int64
	DecodeErrors   atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	Discards       atomic.Int64
}

// RecordCacheLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheLookup(tier Tier, hit bool) {
	switch {
	case tier == TierMemory && hit:
		b.MemoryHits.Add(1)
	case tier == TierMemory:
		b.MemoryMisses.Add(1)
	case hit:
		b.DiskHits.Add(1)
	default:
		b.DiskMisses.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(duration time.Duration, bytes int64, err error) {
	b.FetchCount.Add(1)
	b.FetchNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
		return
	}
	b.FetchBytes.Add(bytes)
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(_ time.Duration, err error) {
	b.DecodeCount.Add(1)
	if err != nil {
		b.DecodeErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ Source, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordDiscard implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDiscard() {
	b.Discards.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MemoryHits:   b.MemoryHits.Load(),
		MemoryMisses: b.MemoryMisses.Load(),
		DiskHits:     b.DiskHits.Load(),
		DiskMisses:   b.DiskMisses.Load(),
		FetchCount:   b.FetchCount.Load(),
		FetchErrors:  b.FetchErrors.Load(),
		FetchBytes:   b.FetchBytes.Load(),
		DecodeCount:  b.DecodeCount.Load(),
		DecodeErrors: b.DecodeErrors.Load(),
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadAvgNanos: b.getAvgLoadNanos(),
		Discards:     b.Discards.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MemoryHits   int64
	MemoryMisses int64
	DiskHits     int64
	DiskMisses   int64
	FetchCount   int64
	FetchErrors  int64
	FetchBytes   int64
	DecodeCount  int64
	DecodeErrors int64
	LoadCount    int64
	LoadErrors   int64
	LoadAvgNanos int64
	Discards     int64
}
