// Package task runs background work for the loader.
//
// A Task moves from Pending to Running to Finished. It runs on a Pool and
// its result is delivered on the Dispatcher, a single goroutine that owns
// all per-slot state of the caller. Cancelling a task marks it so that its
// result arrives as ErrCancelled; with interruption its context is
// cancelled as well.
//
// Pools follow a core/max model: MinWorkers goroutines serve a bounded
// queue, extra workers up to MaxWorkers start only when the queue is full,
// and once that limit is reached the oldest queued work is discarded.
package task
