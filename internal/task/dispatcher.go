package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher runs posted callbacks one at a time on a single goroutine.
// State touched only from posted callbacks needs no further locking.
type Dispatcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	wakeCh chan struct{}

	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher starts the dispatcher goroutine.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		logger:  logger,
		wakeCh:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Post enqueues fn. It reports false when the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every callback posted before the call has run.
func (d *Dispatcher) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !d.Post(func() { close(done) }) {
		return ErrDispatcherClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.closeCh:
			d.drain()
			return
		case <-d.wakeCh:
			d.drain()
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			d.invoke(fn)
		}
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("Dispatcher callback panicked", "panic", r)
		}
	}()
	fn()
}

// Close runs the callbacks already queued and stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	close(d.closeCh)
	d.wg.Wait()
}
