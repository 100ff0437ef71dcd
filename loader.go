package imgcache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/imgcache/decoder"
	"github.com/hupe1980/imgcache/downloader"
	"github.com/hupe1980/imgcache/internal/cache"
	"github.com/hupe1980/imgcache/internal/resource"
	"github.com/hupe1980/imgcache/internal/task"
	"github.com/hupe1980/imgcache/renderable"
)

// DisplayStatus is the immediate outcome of a Display call.
type DisplayStatus int

const (
	// StatusRejected means the request was not accepted: the loader is
	// closed, or the slot or address is missing.
	StatusRejected DisplayStatus = iota
	// StatusMemoryHit means the resource was bound synchronously.
	StatusMemoryHit
	// StatusDispatched means a new load was started for the slot.
	StatusDispatched
	// StatusInProgress means the slot already loads the same address.
	StatusInProgress
)

func (s DisplayStatus) String() string {
	switch s {
	case StatusMemoryHit:
		return "memory-hit"
	case StatusDispatched:
		return "dispatched"
	case StatusInProgress:
		return "in-progress"
	default:
		return "rejected"
	}
}

// errNeedNetwork ends the cache phase of a load that missed both tiers.
var errNeedNetwork = errors.New("cache miss")

// request is a load resolved to its cache key and decode target.
type request struct {
	address string
	key     string
	width   int
	height  int
}

// loadTask is the in-flight load of one slot. Its fields are owned by the
// dispatcher goroutine, except source which is written by the phase that
// produced the result before the result is posted.
type loadTask struct {
	request
	slot   Slot
	id     SlotID
	opts   displayOptions
	start  time.Time
	phase  *task.Task[*renderable.Resource]
	source Source
}

func (lt *loadTask) cancel() {
	if lt.phase != nil {
		lt.phase.Cancel(true)
	}
}

type checkFunc func(ctx context.Context) error

type phaseFunc func(ctx context.Context) (*renderable.Resource, error)

// heldPhase is a phase submitted while paused. It waits on the dispatcher
// instead of in a pool so paused loads never fill the cache pool queue.
type heldPhase struct {
	lt   *loadTask
	pool *task.Pool
	fn   phaseFunc
}

// Loader loads images into slots through a memory cache, an optional
// persistent cache and the network.
//
// Display requests and load results are handled one at a time on a single
// dispatcher goroutine. Renderer callbacks run there as well and may call
// back into the Loader.
type Loader struct {
	opts       options
	renderer   Renderer
	downloader Downloader
	decoder    Decoder
	logger     *Logger
	metrics    MetricsCollector

	rc     *resource.Controller
	memory *cache.MemoryCache
	disk   *cache.DiskCache // nil when disabled

	engine  *task.Engine
	fetches singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	gate      *gate
	exitEarly atomic.Bool
	closed    atomic.Bool

	bindMu   sync.RWMutex
	bindings map[SlotID]string

	// Owned by the dispatcher goroutine.
	tasks map[SlotID]*loadTask
	shown map[SlotID]*renderable.Resource
	held  []heldPhase
}

// New creates a Loader. renderer may be nil when only Load and Prefetch
// are used.
func New(renderer Renderer, optFns ...Option) (*Loader, error) {
	o := applyOptions(optFns)
	if renderer == nil {
		renderer = nopRenderer{}
	}
	if o.downloader == nil {
		o.downloader = downloader.NewHTTP()
	}
	if o.decoder == nil {
		o.decoder = decoder.New()
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     o.memoryLimit,
		MaxBackgroundWorkers: int64(o.prefetchConcurrency),
		IOLimitBytesPerSec:   o.ioLimit,
	})

	memory, err := cache.NewMemoryCache(memoryBudget(o), rc, o.logger.Logger)
	if err != nil {
		return nil, err
	}

	var disk *cache.DiskCache
	if o.diskDir != "" {
		budget := diskBudget(o)
		enabled, err := diskEnabled(o, budget)
		switch {
		case err != nil:
			o.logger.Warn("persistent cache disabled", "dir", o.diskDir, "error", err)
		case !enabled:
			o.logger.Warn("persistent cache disabled, not enough usable space", "dir", o.diskDir, "budget", budget)
		default:
			disk, err = cache.NewDiskCache(cache.DiskCacheConfig{
				RootDir:      o.diskDir,
				MaxSizeBytes: budget,
				FS:           o.fs,
				Codec:        o.diskCodec,
				Controller:   rc,
				Logger:       o.logger.Logger,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		opts:       o,
		renderer:   renderer,
		downloader: o.downloader,
		decoder:    o.decoder,
		logger:     o.logger,
		metrics:    o.metricsCollector,
		rc:         rc,
		memory:     memory,
		disk:       disk,
		engine: task.NewEngine(task.EngineConfig{
			CacheMinWorkers: o.cacheMinWorkers,
			CacheMaxWorkers: o.cacheMaxWorkers,
			CacheQueueSize:  o.cacheQueueSize,
			NetworkWorkers:  o.networkWorkers,
			Logger:          o.logger.Logger,
		}),
		ctx:      ctx,
		cancel:   cancel,
		gate:     newGate(),
		bindings: make(map[SlotID]string),
		tasks:    make(map[SlotID]*loadTask),
		shown:    make(map[SlotID]*renderable.Resource),
	}

	l.logger.Info("loader created",
		"memory_budget", memory.MaxSize(),
		"disk_enabled", disk != nil,
	)
	return l, nil
}

// Display loads address into slot. The returned channel receives the
// immediate outcome once the dispatcher handled the request; results are
// reported to the Renderer. Display never blocks.
func (l *Loader) Display(slot Slot, address string, optFns ...DisplayOption) <-chan DisplayStatus {
	ch := make(chan DisplayStatus, 1)
	if l.closed.Load() || slot == nil || address == "" {
		ch <- StatusRejected
		close(ch)
		return ch
	}

	o := displayOptions{cfg: DisplayConfig{
		LoadingImage: l.opts.loadingImage,
		FailureImage: l.opts.failureImage,
	}}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	posted := l.engine.Dispatcher().Post(func() {
		ch <- l.display(slot, address, o)
		close(ch)
	})
	if !posted {
		ch <- StatusRejected
		close(ch)
	}
	return ch
}

func (l *Loader) display(slot Slot, address string, o displayOptions) DisplayStatus {
	if l.closed.Load() {
		return StatusRejected
	}
	id := slot.ID()
	key := Fingerprint(address)

	if r, ok := l.memory.Get(key); ok {
		l.metrics.RecordCacheLookup(TierMemory, true)
		l.dropTask(id)
		l.deleteBinding(id)
		l.bind(slot, r, o, address)
		l.metrics.RecordLoad(SourceMemory, 0, nil)
		return StatusMemoryHit
	}
	l.metrics.RecordCacheLookup(TierMemory, false)

	l.setBinding(id, key)
	if lt, ok := l.tasks[id]; ok {
		if lt.key == key {
			return StatusInProgress
		}
		lt.cancel()
		delete(l.tasks, id)
	}

	w, h := l.decodeTarget(slot, o)
	lt := &loadTask{
		request: request{address: address, key: key, width: w, height: h},
		slot:    slot,
		id:      id,
		opts:    o,
		start:   time.Now(),
	}
	l.tasks[id] = lt

	l.unbindShown(id)
	if starter, ok := l.renderer.(LoadStarter); ok {
		starter.OnLoadStart(slot, o.cfg.LoadingImage)
	}

	l.submit(lt, l.engine.CachePool(), func(ctx context.Context) (*renderable.Resource, error) {
		r, src, err := l.fromCaches(ctx, &lt.request, l.slotCheck(lt))
		lt.source = src
		return r, err
	})
	return StatusDispatched
}

// submit starts the next phase of lt, or holds it until Resume while the
// loader is paused. It runs on the dispatcher.
func (l *Loader) submit(lt *loadTask, pool *task.Pool, fn phaseFunc) {
	if !l.gate.isPaused() {
		l.startPhase(lt, pool, fn)
		return
	}
	if len(l.held) >= len(l.tasks) {
		l.held = l.currentHeld()
	}
	l.held = append(l.held, heldPhase{lt: lt, pool: pool, fn: fn})
}

// currentHeld drops held phases whose slot moved on to another load.
func (l *Loader) currentHeld() []heldPhase {
	out := l.held[:0]
	for _, h := range l.held {
		if l.tasks[h.lt.id] == h.lt {
			out = append(out, h)
		}
	}
	clear(l.held[len(out):])
	return out
}

// releaseHeld starts the phases held while paused. It runs on the
// dispatcher.
func (l *Loader) releaseHeld() {
	if l.gate.isPaused() || l.closed.Load() {
		return
	}
	held := l.currentHeld()
	l.held = nil
	for _, h := range held {
		l.startPhase(h.lt, h.pool, h.fn)
	}
}

func (l *Loader) startPhase(lt *loadTask, pool *task.Pool, fn phaseFunc) {
	lt.phase = task.NewTask[*renderable.Resource](l.ctx, fn, l.engine.Dispatcher(), func(r *renderable.Resource, err error) {
		l.onPhaseDone(lt, r, err)
	})
	lt.phase.Execute(pool)
}

// onPhaseDone runs on the dispatcher.
func (l *Loader) onPhaseDone(lt *loadTask, r *renderable.Resource, err error) {
	if l.tasks[lt.id] != lt {
		return
	}

	if errors.Is(err, errNeedNetwork) && !l.closed.Load() {
		l.submit(lt, l.engine.NetworkPool(), func(ctx context.Context) (*renderable.Resource, error) {
			lt.source = SourceNetwork
			return l.fromNetwork(ctx, &lt.request, l.slotCheck(lt))
		})
		return
	}

	stale := l.binding(lt.id) != lt.key
	delete(l.tasks, lt.id)
	l.deleteBindingIf(lt.id, lt.key)

	if errors.Is(err, task.ErrDiscarded) {
		l.metrics.RecordDiscard()
	}
	if errors.Is(err, task.ErrCancelled) || errors.Is(err, ErrStale) || errors.Is(err, context.Canceled) {
		l.logger.Debug("load abandoned", "address", lt.address, "slot", uint64(lt.id), "reason", err)
		return
	}
	if stale || l.closed.Load() || l.exitEarly.Load() || !lt.slot.Alive() {
		return
	}

	if err != nil {
		l.metrics.RecordLoad(SourceNone, time.Since(lt.start), err)
		l.logger.LogLoad(l.ctx, lt.address, SourceNone, err)
		l.renderer.OnLoadFailure(lt.slot, lt.opts.cfg.FailureImage)
		if lt.opts.onFailure != nil {
			lt.opts.onFailure(lt.address, err)
		}
		return
	}
	l.metrics.RecordLoad(lt.source, time.Since(lt.start), nil)
	l.logger.LogLoad(l.ctx, lt.address, lt.source, nil)
	l.bind(lt.slot, r, lt.opts, lt.address)
}

// bind shows r in slot. The new resource is referenced before the previous
// one is released so rebinding the same resource never drops it.
func (l *Loader) bind(slot Slot, r *renderable.Resource, o displayOptions, address string) {
	id := slot.ID()
	r.SetDisplayed(true)
	if prev, ok := l.shown[id]; ok {
		prev.SetDisplayed(false)
	}
	l.shown[id] = r
	l.renderer.OnLoadSuccess(slot, r, o.cfg)
	if o.onSuccess != nil {
		o.onSuccess(address, r)
	}
}

func (l *Loader) unbindShown(id SlotID) {
	if prev, ok := l.shown[id]; ok {
		prev.SetDisplayed(false)
		delete(l.shown, id)
	}
}

func (l *Loader) dropTask(id SlotID) {
	if lt, ok := l.tasks[id]; ok {
		lt.cancel()
		delete(l.tasks, id)
	}
}

// decodeTarget picks the decode bounds: the slot size hint when positive,
// then the request, then the loader default.
func (l *Loader) decodeTarget(slot Slot, o displayOptions) (int, int) {
	if !l.opts.decodeSizeCalculation {
		return 0, 0
	}
	w, h := slot.Size()
	if w <= 0 {
		w = o.cfg.MaxWidth
	}
	if h <= 0 {
		h = o.cfg.MaxHeight
	}
	if w <= 0 {
		w = l.opts.maxWidth
	}
	if h <= 0 {
		h = l.opts.maxHeight
	}
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	return w, h
}

func (l *Loader) binding(id SlotID) string {
	l.bindMu.RLock()
	defer l.bindMu.RUnlock()
	return l.bindings[id]
}

func (l *Loader) setBinding(id SlotID, key string) {
	l.bindMu.Lock()
	l.bindings[id] = key
	l.bindMu.Unlock()
}

func (l *Loader) deleteBinding(id SlotID) {
	l.bindMu.Lock()
	delete(l.bindings, id)
	l.bindMu.Unlock()
}

func (l *Loader) deleteBindingIf(id SlotID, key string) {
	l.bindMu.Lock()
	if l.bindings[id] == key {
		delete(l.bindings, id)
	}
	l.bindMu.Unlock()
}

// slotCheck returns the checkpoint run before every expensive step of a
// slot load. It blocks while paused.
func (l *Loader) slotCheck(lt *loadTask) checkFunc {
	return func(ctx context.Context) error {
		if err := l.gate.wait(ctx); err != nil {
			return task.ErrCancelled
		}
		if l.exitEarly.Load() {
			return ErrStale
		}
		if ctx.Err() != nil {
			return task.ErrCancelled
		}
		if !lt.slot.Alive() || l.binding(lt.id) != lt.key {
			return ErrStale
		}
		return nil
	}
}

func ctxCheck(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// fromCaches resolves req from memory, then disk. It returns errNeedNetwork
// when both miss. A disk entry that fails to decode is removed.
func (l *Loader) fromCaches(ctx context.Context, req *request, check checkFunc) (*renderable.Resource, Source, error) {
	if err := check(ctx); err != nil {
		return nil, SourceNone, err
	}
	if r, ok := l.memory.Get(req.key); ok {
		return r, SourceMemory, nil
	}
	if l.disk == nil {
		return nil, SourceNone, errNeedNetwork
	}

	if err := check(ctx); err != nil {
		return nil, SourceNone, err
	}
	data, ok := l.disk.Get(req.key)
	l.metrics.RecordCacheLookup(TierDisk, ok)
	if !ok {
		return nil, SourceNone, errNeedNetwork
	}

	img, err := l.decode(req.address, data, req.width, req.height)
	if err != nil {
		l.logger.Warn("dropping undecodable disk entry", "key", req.key, "error", err)
		if rerr := l.disk.Remove(req.key); rerr != nil {
			l.logger.LogCacheIO(ctx, "remove", req.key, rerr)
		}
		return nil, SourceNone, errNeedNetwork
	}
	if err := check(ctx); err != nil {
		return nil, SourceNone, err
	}
	return l.memory.Put(req.key, l.newResource(req.key, img)), SourceDisk, nil
}

// fromNetwork fetches, decodes and caches req, retrying failed attempts
// with exponential backoff. check failures end the retries at once.
func (l *Loader) fromNetwork(ctx context.Context, req *request, check checkFunc) (*renderable.Resource, error) {
	var (
		attempts int
		img      image.Image
	)
	op := func() error {
		attempts++
		if err := check(ctx); err != nil {
			return backoff.Permanent(err)
		}
		data, err := l.fetch(ctx, req)
		l.logger.LogFetch(ctx, req.address, attempts, err)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(task.ErrCancelled)
			}
			return err
		}
		if err := check(ctx); err != nil {
			return backoff.Permanent(err)
		}
		img, err = l.decode(req.address, data, req.width, req.height)
		if err != nil {
			if l.disk != nil {
				if rerr := l.disk.Remove(req.key); rerr != nil {
					l.logger.LogCacheIO(ctx, "remove", req.key, rerr)
				}
			}
			return err
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(l.newBackOff(), uint64(l.opts.retries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, ErrStale) || errors.Is(err, task.ErrCancelled) || ctx.Err() != nil {
			return nil, task.ErrCancelled
		}
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, &FetchError{Address: req.address, Attempts: attempts, cause: err}
	}

	if err := check(ctx); err != nil {
		return nil, err
	}
	return l.memory.Put(req.key, l.newResource(req.key, img)), nil
}

func (l *Loader) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.opts.retryBackoff
	b.MaxElapsedTime = 0
	return b
}

// fetch downloads req once per key at a time. Concurrent loads of the same
// key share the download; a caller whose ctx ends stops waiting.
func (l *Loader) fetch(ctx context.Context, req *request) ([]byte, error) {
	ch := l.fetches.DoChan(req.key, func() (any, error) {
		return l.fetchOnce(l.ctx, req)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchOnce downloads address. With a persistent cache the stream is
// written through to a temp entry and committed. Cache write failures are
// logged and never fail the fetch.
func (l *Loader) fetchOnce(ctx context.Context, req *request) ([]byte, error) {
	start := time.Now()
	data, err := l.fetchThrough(ctx, req)
	l.metrics.RecordFetch(time.Since(start), int64(len(data)), err)
	return data, err
}

func (l *Loader) fetchThrough(ctx context.Context, req *request) ([]byte, error) {
	if l.disk == nil {
		return l.downloader.FetchBytes(ctx, req.address)
	}

	w, err := l.disk.OpenTempWriter(ctx, req.key)
	if err != nil {
		if !errors.Is(err, cache.ErrEditInProgress) {
			l.logger.LogCacheIO(ctx, "open", req.key, err)
		}
		return l.downloader.FetchBytes(ctx, req.address)
	}

	var buf bytes.Buffer
	tee := &teeWriter{buf: &buf, w: w}
	if err := l.downloader.FetchToStream(ctx, req.address, tee); err != nil {
		_ = l.disk.DiscardTemp(req.key)
		return nil, err
	}
	if tee.err != nil {
		_ = l.disk.DiscardTemp(req.key)
		l.logger.LogCacheIO(ctx, "write", req.key, &CacheIOError{Op: "write", Key: req.key, cause: tee.err})
		return buf.Bytes(), nil
	}
	if err := l.disk.Commit(req.key); err != nil {
		l.logger.LogCacheIO(ctx, "commit", req.key, &CacheIOError{Op: "commit", Key: req.key, cause: err})
	}
	return buf.Bytes(), nil
}

// teeWriter copies into buf and, until its first error, into w. Errors of
// w are recorded rather than returned.
type teeWriter struct {
	buf *bytes.Buffer
	w   io.Writer
	err error
}

func (t *teeWriter) Write(p []byte) (int, error) {
	if t.err == nil {
		if _, err := t.w.Write(p); err != nil {
			t.err = err
		}
	}
	return t.buf.Write(p)
}

func (l *Loader) decode(address string, data []byte, w, h int) (image.Image, error) {
	start := time.Now()
	img, err := l.decoder.Decode(data, w, h)
	if err == nil && img == nil {
		err = errors.New("decoder returned no image")
	}
	l.metrics.RecordDecode(time.Since(start), err)
	if err != nil {
		return nil, &DecodeError{Address: address, cause: err}
	}
	return img, nil
}

func (l *Loader) newResource(key string, img image.Image) *renderable.Resource {
	return renderable.New(key, img, renderable.WithGraceDelay(l.opts.graceDelay))
}

// Load resolves address synchronously through memory, disk and network
// without a slot. width and height bound the decode size; 0 means none.
func (l *Loader) Load(ctx context.Context, address string, width, height int) (*renderable.Resource, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if !l.opts.decodeSizeCalculation {
		width, height = 0, 0
	}
	req := &request{address: address, key: Fingerprint(address), width: width, height: height}
	start := time.Now()

	if r, ok := l.memory.Get(req.key); ok {
		l.metrics.RecordCacheLookup(TierMemory, true)
		l.metrics.RecordLoad(SourceMemory, time.Since(start), nil)
		return r, nil
	}
	l.metrics.RecordCacheLookup(TierMemory, false)

	r, src, err := l.fromCaches(ctx, req, ctxCheck)
	if errors.Is(err, errNeedNetwork) {
		src = SourceNetwork
		r, err = l.fromNetwork(ctx, req, ctxCheck)
	}
	if errors.Is(err, task.ErrCancelled) && ctx.Err() != nil {
		err = ctx.Err()
	}
	l.metrics.RecordLoad(src, time.Since(start), err)
	l.logger.LogLoad(ctx, address, src, err)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Prefetch downloads address into the persistent cache without decoding
// it. It makes up to PrefetchAttempts attempts and runs at most the
// configured prefetch concurrency at a time.
func (l *Loader) Prefetch(ctx context.Context, address string) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if address == "" {
		return ErrEmptyAddress
	}
	if l.disk == nil {
		return ErrDiskCacheDisabled
	}
	key := Fingerprint(address)
	if l.disk.Contains(key) {
		return nil
	}

	if err := l.rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer l.rc.ReleaseBackground()

	attempts := 0
	op := func() error {
		attempts++
		w, err := l.disk.OpenTempWriter(ctx, key)
		if errors.Is(err, cache.ErrEditInProgress) {
			// A load is writing the same entry.
			return nil
		}
		if err != nil {
			return backoff.Permanent(&CacheIOError{Op: "open", Key: key, cause: err})
		}
		start := time.Now()
		cw := &countingWriter{w: w}
		err = l.downloader.FetchToStream(ctx, address, cw)
		l.metrics.RecordFetch(time.Since(start), cw.n, err)
		if err != nil {
			_ = l.disk.DiscardTemp(key)
			return err
		}
		if err := l.disk.Commit(key); err != nil {
			return backoff.Permanent(&CacheIOError{Op: "commit", Key: key, cause: err})
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(l.newBackOff(), PrefetchAttempts-1), ctx)
	err := backoff.Retry(op, b)
	if err != nil && ctx.Err() == nil {
		var cerr *CacheIOError
		if !errors.As(err, &cerr) {
			err = &FetchError{Address: address, Attempts: attempts, cause: err}
		}
	}
	l.logger.LogPrefetch(ctx, address, err)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Pause holds every load at its next checkpoint until Resume. Loads
// dispatched while paused wait on the dispatcher rather than in a pool.
func (l *Loader) Pause() { l.gate.pause() }

// Resume releases loads held by Pause.
func (l *Loader) Resume() {
	l.gate.resume()
	l.engine.Dispatcher().Post(l.releaseHeld)
}

// Paused reports whether loads are held.
func (l *Loader) Paused() bool { return l.gate.isPaused() }

// SetExitEarly makes running loads abort at their next checkpoint and drops
// their results while set. Setting it also resumes a paused loader so held
// loads can exit.
func (l *Loader) SetExitEarly(exit bool) {
	l.exitEarly.Store(exit)
	if exit {
		l.Resume()
	}
}

// Detach forgets slot: its load is cancelled, its binding dropped and the
// resource it displayed is unreferenced. Call it when the host tears the
// slot down or recycles it.
func (l *Loader) Detach(slot Slot) {
	if slot == nil {
		return
	}
	id := slot.ID()
	// Unbinding right away makes a running load stale at its next
	// checkpoint; the dispatcher repeats it after requests posted earlier.
	l.deleteBinding(id)
	l.engine.Dispatcher().Post(func() {
		l.dropTask(id)
		l.deleteBinding(id)
		l.unbindShown(id)
	})
}

// Sync blocks until every request and result posted before the call has
// been handled by the dispatcher.
func (l *Loader) Sync(ctx context.Context) error {
	return l.engine.Dispatcher().Sync(ctx)
}

// OnLowMemory drops every cached resource no slot is displaying.
func (l *Loader) OnLowMemory() int {
	return l.memory.TrimUnshown()
}

// ClearMemory evicts the memory cache.
func (l *Loader) ClearMemory() {
	l.memory.EvictAll()
}

// ClearDisk deletes every persistent cache entry and evicts the memory
// cache.
func (l *Loader) ClearDisk() error {
	l.memory.EvictAll()
	if l.disk == nil {
		return nil
	}
	if err := l.disk.Clear(); err != nil {
		return &CacheIOError{Op: "clear", Key: l.disk.Dir(), cause: err}
	}
	return nil
}

// Remove drops address from both caches.
func (l *Loader) Remove(address string) error {
	key := Fingerprint(address)
	l.memory.Remove(key)
	if l.disk == nil {
		return nil
	}
	if err := l.disk.Remove(key); err != nil {
		return &CacheIOError{Op: "remove", Key: key, cause: err}
	}
	return nil
}

// Initialize scans the persistent cache directory. Other operations do it
// lazily; calling it up front moves the scan off the first load.
func (l *Loader) Initialize() error {
	if l.disk == nil {
		return nil
	}
	return l.disk.Initialize()
}

type nopRenderer struct{}

func (nopRenderer) OnLoadSuccess(Slot, *renderable.Resource, DisplayConfig) {}
func (nopRenderer) OnLoadFailure(Slot, image.Image)                         {}
