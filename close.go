package imgcache

import "fmt"

// Close cancels every load, stops the workers and the dispatcher and
// evicts the memory cache. Resources still displayed stay valid until
// their slots release them.
func (l *Loader) Close() error {
	if l == nil {
		return nil
	}
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	l.gate.resume()
	l.cancel()
	l.engine.Dispatcher().Post(func() {
		for id, lt := range l.tasks {
			lt.cancel()
			delete(l.tasks, id)
		}
	})
	if err := l.engine.Close(); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	l.memory.EvictAll()
	l.logger.Info("loader closed")
	return nil
}
