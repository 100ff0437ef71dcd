package task

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("task: pool closed")

// Runnable is a unit of work accepted by a Pool.
type Runnable interface {
	// Run executes the work on a pool worker.
	Run()
	// Discard is called instead of Run when the pool drops the work,
	// either by the discard-oldest policy or on Close.
	Discard()
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	Name string
	// MinWorkers are kept alive while the pool is open. Defaults to 1.
	MinWorkers int
	// MaxWorkers bounds concurrency. Defaults to MinWorkers.
	MaxWorkers int
	// QueueSize bounds the backlog. 0 means unbounded. When the queue is
	// full and all workers are busy the oldest queued work is discarded.
	QueueSize int
	Logger    *slog.Logger
}

// Pool executes Runnables on a bounded set of goroutines.
//
// Workers beyond MinWorkers are started only when the queue is full, and
// exit once the queue drains.
type Pool struct {
	name       string
	minWorkers int
	maxWorkers int
	capacity   int
	logger     *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Runnable
	workers int
	idle    int
	closed  bool
	wg      sync.WaitGroup

	completed atomic.Int64
	discarded atomic.Int64
}

// NewPool creates a pool. No goroutine is started until work arrives.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	p := &Pool{
		name:       cfg.Name,
		minWorkers: cfg.MinWorkers,
		maxWorkers: cfg.MaxWorkers,
		capacity:   cfg.QueueSize,
		logger:     cfg.Logger,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Submit schedules r. It never blocks.
func (p *Pool) Submit(r Runnable) error {
	var dropped Runnable

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	switch {
	case p.workers < p.minWorkers:
		p.spawnLocked(r)
	case p.capacity == 0 || len(p.queue) < p.capacity:
		p.queue = append(p.queue, r)
		p.cond.Signal()
	case p.workers < p.maxWorkers:
		p.spawnLocked(r)
	default:
		dropped = p.queue[0]
		p.queue[0] = nil
		p.queue = append(p.queue[1:], r)
		p.cond.Signal()
	}
	p.mu.Unlock()

	if dropped != nil {
		p.discarded.Add(1)
		if p.logger != nil {
			p.logger.Debug("discarded oldest queued task", "pool", p.name)
		}
		dropped.Discard()
	}
	return nil
}

func (p *Pool) spawnLocked(first Runnable) {
	p.workers++
	p.wg.Add(1)
	go p.worker(first)
}

func (p *Pool) worker(first Runnable) {
	defer p.wg.Done()

	if first != nil {
		first.Run()
		p.completed.Add(1)
	}
	for {
		r, ok := p.next()
		if !ok {
			return
		}
		r.Run()
		p.completed.Add(1)
	}
}

// next blocks for queued work. It reports false when the worker must exit.
func (p *Pool) next() (Runnable, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.closed || p.workers > p.minWorkers {
			p.workers--
			return nil, false
		}
		p.idle++
		p.cond.Wait()
		p.idle--
	}
	r := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return r, true
}

// Close discards queued work, lets running work finish and waits for the
// workers to exit. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, r := range pending {
		p.discarded.Add(1)
		r.Discard()
	}
	p.wg.Wait()
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Workers   int
	Idle      int
	Queued    int
	Completed int64
	Discarded int64
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Workers:   p.workers,
		Idle:      p.idle,
		Queued:    len(p.queue),
		Completed: p.completed.Load(),
		Discarded: p.discarded.Load(),
	}
}
