package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrCancelled is delivered to a task whose Cancel was called.
	ErrCancelled = errors.New("task: cancelled")
	// ErrDiscarded is delivered to a task dropped by its pool.
	ErrDiscarded = errors.New("task: discarded")
	// ErrDispatcherClosed is returned when results can no longer be posted.
	ErrDispatcherClosed = errors.New("task: dispatcher closed")
	// ErrTimeout is returned by AwaitTimeout.
	ErrTimeout = errors.New("task: timed out")
)

// Task runs fn once on a pool and delivers its result on the dispatcher.
type Task[T any] struct {
	fn     func(context.Context) (T, error)
	onDone func(T, error)
	disp   *Dispatcher
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	status    atomic.Int32
	cancelled atomic.Bool

	finishOnce sync.Once
	done       chan struct{}
	result     T
	err        error
}

// NewTask creates a pending task. onDone may be nil. When d is nil onDone
// runs on the goroutine that finished the task.
func NewTask[T any](parent context.Context, fn func(context.Context) (T, error), d *Dispatcher, onDone func(T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(parent)
	t := &Task[T]{
		fn:     fn,
		onDone: onDone,
		disp:   d,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if d != nil {
		t.logger = d.logger
	}
	return t
}

// Context is cancelled when the task is cancelled with interruption.
func (t *Task[T]) Context() context.Context { return t.ctx }

// Status returns the lifecycle state.
func (t *Task[T]) Status() Status { return Status(t.status.Load()) }

// IsCancelled reports whether Cancel was called.
func (t *Task[T]) IsCancelled() bool { return t.cancelled.Load() }

// Done is closed once the task finished.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Execute submits the task to p. A task executes at most once; a second
// call is logged and reports false.
func (t *Task[T]) Execute(p *Pool) bool {
	if !t.status.CompareAndSwap(int32(Pending), int32(Running)) {
		if t.logger != nil {
			t.logger.Warn("Task already executed", "status", t.Status().String())
		}
		return false
	}
	if err := p.Submit(t); err != nil {
		var zero T
		t.finish(zero, err)
		return false
	}
	return true
}

// Run implements Runnable.
func (t *Task[T]) Run() {
	var zero T
	if t.cancelled.Load() {
		t.finish(zero, ErrCancelled)
		return
	}
	v, err := t.fn(t.ctx)
	t.finish(v, err)
}

// Discard implements Runnable.
func (t *Task[T]) Discard() {
	var zero T
	t.finish(zero, ErrDiscarded)
}

// Cancel marks the task cancelled. With mayInterrupt the task context is
// cancelled too. A pending task finishes right away. Cancel reports false
// if the task already finished.
func (t *Task[T]) Cancel(mayInterrupt bool) bool {
	if t.Status() == Finished {
		return false
	}
	t.cancelled.Store(true)
	if mayInterrupt {
		t.cancel()
	}
	if t.status.CompareAndSwap(int32(Pending), int32(Finished)) {
		var zero T
		t.finish(zero, ErrCancelled)
	}
	return true
}

func (t *Task[T]) finish(v T, err error) {
	t.finishOnce.Do(func() {
		if t.cancelled.Load() {
			var zero T
			v, err = zero, ErrCancelled
		}
		t.result, t.err = v, err
		t.status.Store(int32(Finished))
		t.cancel()
		close(t.done)

		if t.onDone == nil {
			return
		}
		deliver := func() { t.onDone(v, err) }
		if t.disp == nil {
			deliver()
			return
		}
		if !t.disp.Post(deliver) && t.logger != nil {
			t.logger.Debug("Task result dropped, dispatcher closed")
		}
	})
}

// Await blocks until the task finished or ctx is done.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitTimeout is Await bounded by d.
func (t *Task[T]) AwaitTimeout(d time.Duration) (T, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return t.result, t.err
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}
