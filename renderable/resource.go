package renderable

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// DefaultGraceDelay absorbs rapid rebinding of a resource to another slot
// before its pixels are released.
const DefaultGraceDelay = 2 * time.Second

// Option configures a Resource.
type Option func(*Resource)

// WithGraceDelay sets the delay between both counters reaching zero and the
// release. Zero releases synchronously.
func WithGraceDelay(d time.Duration) Option {
	return func(r *Resource) {
		if d < 0 {
			d = 0
		}
		r.grace = d
	}
}

// WithReleaseFunc registers a hook run once when the pixels are released,
// e.g. to return a buffer to a pool.
func WithReleaseFunc(fn func(*Resource)) Option {
	return func(r *Resource) {
		r.onRelease = fn
	}
}

// Resource is a decoded image shared by the slots displaying it and the
// caches holding it.
//
// A resource is released when its display count and cache count are both
// zero and it has been displayed at least once. Resources that were never
// displayed are left to the garbage collector.
type Resource struct {
	key  string
	size int64

	mu               sync.Mutex
	img              image.Image
	displayCount     int
	cacheCount       int
	hasBeenDisplayed bool
	released         bool
	timer            *time.Timer
	grace            time.Duration
	onRelease        func(*Resource)
}

// New wraps img under the request fingerprint key.
func New(key string, img image.Image, optFns ...Option) *Resource {
	r := &Resource{
		key:   key,
		img:   img,
		size:  ByteSize(img),
		grace: DefaultGraceDelay,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(r)
		}
	}
	return r
}

// ByteSize estimates the bytes held by img as four bytes per pixel.
func ByteSize(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Key returns the request fingerprint.
func (r *Resource) Key() string { return r.key }

// Size returns the byte cost used for memory cache accounting. It does not
// change after release.
func (r *Resource) Size() int64 { return r.size }

// Image returns the decoded image, or nil once released.
func (r *Resource) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.img
}

// IsValid reports whether the pixels are still available.
func (r *Resource) IsValid() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.released && r.img != nil
}

// DisplayCount returns the number of slots showing the resource.
func (r *Resource) DisplayCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayCount
}

// CacheCount returns the number of caches holding the resource.
func (r *Resource) CacheCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheCount
}

// IsDisplayed reports whether at least one slot shows the resource.
func (r *Resource) IsDisplayed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayCount > 0
}

// SetDisplayed increments (true) or decrements (false) the display count.
// Decrementing below zero panics.
func (r *Resource) SetDisplayed(displayed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if displayed {
		r.displayCount++
		r.hasBeenDisplayed = true
	} else {
		r.displayCount--
	}
	r.checkStateLocked()
}

// SetCached increments (true) or decrements (false) the cache count.
// Decrementing below zero panics.
func (r *Resource) SetCached(cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached {
		r.cacheCount++
	} else {
		r.cacheCount--
	}
	r.checkStateLocked()
}

func (r *Resource) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("resource{key=%s display=%d cache=%d released=%t}", r.key, r.displayCount, r.cacheCount, r.released)
}

func (r *Resource) checkStateLocked() {
	if r.displayCount < 0 || r.cacheCount < 0 {
		panic(fmt.Sprintf("renderable: negative reference count on %s (display=%d cache=%d)", r.key, r.displayCount, r.cacheCount))
	}

	if r.displayCount > 0 || r.cacheCount > 0 {
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		return
	}
	if !r.hasBeenDisplayed || r.released || r.timer != nil {
		return
	}
	if r.grace == 0 {
		r.releaseLocked()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// A stopped timer may still fire once; only the current one counts.
		if r.timer != t {
			return
		}
		r.timer = nil
		if r.displayCount == 0 && r.cacheCount == 0 {
			r.releaseLocked()
		}
	})
	r.timer = t
}

func (r *Resource) releaseLocked() {
	if r.released {
		return
	}
	r.released = true
	r.img = nil
	if r.onRelease != nil {
		// The hook must not call back into the resource.
		r.onRelease(r)
	}
}
