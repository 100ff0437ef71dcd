package task

import (
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrClosed is returned by Engine.Close on a second call.
var ErrClosed = errors.New("task: engine closed")

// EngineConfig sizes the pools of an Engine.
type EngineConfig struct {
	CacheMinWorkers int
	CacheMaxWorkers int
	CacheQueueSize  int
	NetworkWorkers  int
	Logger          *slog.Logger
}

// DefaultEngineConfig matches the sizing used for image loading: a small
// cache pool that drops the oldest queued work and four network workers.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CacheMinWorkers: 1,
		CacheMaxWorkers: 2,
		CacheQueueSize:  10,
		NetworkWorkers:  4,
	}
}

// Engine bundles the cache pool, the network pool and the dispatcher.
type Engine struct {
	cache      *Pool
	network    *Pool
	dispatcher *Dispatcher
	closed     atomic.Bool
}

// NewEngine creates the pools and starts the dispatcher.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.CacheMinWorkers <= 0 {
		cfg.CacheMinWorkers = def.CacheMinWorkers
	}
	if cfg.CacheMaxWorkers <= 0 {
		cfg.CacheMaxWorkers = def.CacheMaxWorkers
	}
	if cfg.CacheQueueSize <= 0 {
		cfg.CacheQueueSize = def.CacheQueueSize
	}
	if cfg.NetworkWorkers <= 0 {
		cfg.NetworkWorkers = def.NetworkWorkers
	}
	return &Engine{
		cache: NewPool(PoolConfig{
			Name:       "cache",
			MinWorkers: cfg.CacheMinWorkers,
			MaxWorkers: cfg.CacheMaxWorkers,
			QueueSize:  cfg.CacheQueueSize,
			Logger:     cfg.Logger,
		}),
		network: NewPool(PoolConfig{
			Name:       "network",
			MinWorkers: cfg.NetworkWorkers,
			MaxWorkers: cfg.NetworkWorkers,
			Logger:     cfg.Logger,
		}),
		dispatcher: NewDispatcher(cfg.Logger),
	}
}

// CachePool returns the constrained pool used for cache lookups.
func (e *Engine) CachePool() *Pool { return e.cache }

// NetworkPool returns the pool used for fetches.
func (e *Engine) NetworkPool() *Pool { return e.network }

// Dispatcher returns the result dispatcher.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Close shuts down both pools, then the dispatcher. Results of work that
// finished during shutdown are still delivered.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	e.cache.Close()
	e.network.Close()
	e.dispatcher.Close()
	return nil
}
