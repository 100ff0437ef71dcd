package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/imgcache/codec"
	"github.com/hupe1980/imgcache/internal/fs"
	"github.com/hupe1980/imgcache/internal/resource"
)

const (
	// TempSuffix marks staged entries that have not been committed.
	TempSuffix = ".temp"

	// HysteresisFactor is the low watermark pruning evicts down to,
	// relative to the budget.
	HysteresisFactor = 0.9
)

var (
	// ErrInvalidKey is returned for keys that are not plain file names.
	ErrInvalidKey = errors.New("cache: invalid key")
	// ErrEditInProgress is returned when a temp writer is already open for a key.
	ErrEditInProgress = errors.New("cache: entry is already being edited")
	// ErrNoEdit is returned by Commit when no temp writer is open for a key.
	ErrNoEdit = errors.New("cache: no edit in progress")
	// ErrEmptyEntry is returned by Commit when nothing was written.
	ErrEmptyEntry = errors.New("cache: empty entry")
)

// DiskCacheConfig holds configuration for the disk cache.
type DiskCacheConfig struct {
	// RootDir holds one file per entry, named by key.
	RootDir string
	// MaxSizeBytes is the budget for the summed file sizes.
	MaxSizeBytes int64
	// FS defaults to fs.Default.
	FS fs.FileSystem
	// Codec encodes file payloads. Defaults to codec.Default.
	Codec codec.Codec
	// Controller throttles writes when it carries an IO limit.
	Controller *resource.Controller
	Logger     *slog.Logger
}

// DiskCache is a size-bounded cache of byte payloads stored one file per key.
// An in-memory, access-ordered index tracks the key and size of every file
// and is rebuilt from the directory listing by Initialize.
//
// Index mutations are serialized under one lock. File contents are read
// outside the lock; a missing or unreadable file is a miss and its index
// entry is dropped.
type DiskCache struct {
	mu          sync.Mutex
	rootDir     string
	maxSize     int64
	total       int64
	items       map[string]*list.Element
	order       *list.List // front is most recently used
	edits       map[string]*TempWriter
	initialized bool

	fs     fs.FileSystem
	codec  codec.Codec
	rc     *resource.Controller
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	puts      atomic.Int64
	evictions atomic.Int64
}

type diskEntry struct {
	key  string
	size int64
}

// NewDiskCache creates a disk cache. The directory is scanned by Initialize,
// or lazily by the first operation.
func NewDiskCache(cfg DiskCacheConfig) (*DiskCache, error) {
	if cfg.MaxSizeBytes <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.RootDir == "" {
		return nil, errors.New("cache: root dir is required")
	}
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Default
	}
	return &DiskCache{
		rootDir: cfg.RootDir,
		maxSize: cfg.MaxSizeBytes,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		edits:   make(map[string]*TempWriter),
		fs:      cfg.FS,
		codec:   cfg.Codec,
		rc:      cfg.Controller,
		logger:  cfg.Logger,
	}, nil
}

// Initialize creates the root directory and rebuilds the index from the
// files in it. Zero-length files and leftover temp files are deleted. The
// index is ordered by modification time, oldest first in eviction order.
// Calling it again is a no-op.
func (c *DiskCache) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

func (c *DiskCache) initLocked() error {
	if c.initialized {
		return nil
	}
	start := time.Now()
	if err := c.fs.MkdirAll(c.rootDir, 0o755); err != nil {
		return fmt.Errorf("cache: create %s: %w", c.rootDir, err)
	}
	dirents, err := c.fs.ReadDir(c.rootDir)
	if err != nil {
		return fmt.Errorf("cache: list %s: %w", c.rootDir, err)
	}

	type found struct {
		key     string
		size    int64
		modTime time.Time
	}
	var files []found
	var dropped int
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		info, err := de.Info()
		if err != nil {
			continue
		}
		if strings.HasSuffix(name, TempSuffix) || info.Size() == 0 {
			if err := c.fs.Remove(c.path(name)); err != nil && c.logger != nil {
				c.logger.Warn("failed to delete stale cache file", "file", name, "error", err)
			}
			dropped++
			continue
		}
		files = append(files, found{key: name, size: info.Size(), modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files {
		c.putEntryLocked(f.key, f.size)
	}
	c.initialized = true

	if c.logger != nil {
		c.logger.Info("Disk cache initialized",
			"dir", c.rootDir,
			"entries", len(files),
			"bytes", c.total,
			"dropped", dropped,
			"duration", time.Since(start),
		)
	}
	return nil
}

// Get returns the payload stored under key.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	if validateKey(key) != nil {
		return nil, false
	}

	c.mu.Lock()
	if err := c.initLocked(); err != nil {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	el, ok := c.items[key]
	if ok {
		c.order.MoveToFront(el)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := c.readFile(key)
	if err != nil {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur == el {
			if !errors.Is(err, os.ErrNotExist) {
				_ = c.fs.Remove(c.path(key))
			}
			c.removeEntryLocked(el)
		}
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Warn("dropped unreadable cache entry", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

func (c *DiskCache) readFile(key string) ([]byte, error) {
	f, err := c.fs.OpenFile(c.path(key), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := c.codec.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Put stores data under key through a temp file and Commit.
func (c *DiskCache) Put(ctx context.Context, key string, data []byte) error {
	w, err := c.OpenTempWriter(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = c.DiscardTemp(key)
		return err
	}
	return c.Commit(key)
}

// OpenTempWriter stages a new payload for key in a temp file. The entry
// becomes visible only after Commit. Opening a second writer for the same
// key before Commit or DiscardTemp returns ErrEditInProgress.
func (c *DiskCache) OpenTempWriter(ctx context.Context, key string) (*TempWriter, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(); err != nil {
		return nil, err
	}
	if _, busy := c.edits[key]; busy {
		return nil, fmt.Errorf("%w: %s", ErrEditInProgress, key)
	}

	f, err := c.fs.OpenFile(c.tempPath(key), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := c.codec.NewWriter(c.rc.Writer(ctx, f))
	if err != nil {
		_ = f.Close()
		_ = c.fs.Remove(c.tempPath(key))
		return nil, err
	}
	w := &TempWriter{key: key, file: f, enc: enc}
	c.edits[key] = w
	return w, nil
}

// Commit closes the temp writer of key and promotes the temp file to the
// entry, pruning the cache to make room first. A zero-length temp file is
// deleted and ErrEmptyEntry returned.
func (c *DiskCache) Commit(key string) error {
	c.mu.Lock()
	w, ok := c.edits[key]
	delete(c.edits, key)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoEdit, key)
	}

	tmp := c.tempPath(key)
	if err := w.Close(); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	info, err := c.fs.Stat(tmp)
	if err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	size := info.Size()
	if size == 0 {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("%w: %s", ErrEmptyEntry, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneIfNeededLocked(size)
	if err := c.fs.Rename(tmp, c.path(key)); err != nil {
		_ = c.fs.Remove(tmp)
		return err
	}
	c.putEntryLocked(key, size)
	c.puts.Add(1)
	return nil
}

// DiscardTemp abandons the staged payload of key, if any.
func (c *DiskCache) DiscardTemp(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	w, ok := c.edits[key]
	delete(c.edits, key)
	c.mu.Unlock()

	if ok {
		_ = w.Close()
	}
	if err := c.fs.Remove(c.tempPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Remove deletes the entry of key. The index entry is kept if the file
// could not be deleted.
func (c *DiskCache) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(); err != nil {
		return err
	}
	el, ok := c.items[key]
	if !ok {
		return nil
	}
	if err := c.fs.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	c.removeEntryLocked(el)
	return nil
}

// Clear deletes every file in the root directory and resets the index.
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dirents, err := c.fs.ReadDir(c.rootDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var firstErr error
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if err := c.fs.Remove(c.path(de.Name())); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.total = 0
	c.initialized = true

	if c.logger != nil {
		c.logger.Info("Disk cache cleared", "dir", c.rootDir, "error", firstErr)
	}
	return firstErr
}

// Contains reports whether key is indexed, without touching recency.
func (c *DiskCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(); err != nil {
		return false
	}
	_, ok := c.items[key]
	return ok
}

// Keys returns the indexed keys from least to most recently used.
func (c *DiskCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for el := c.order.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*diskEntry).key)
	}
	return keys
}

// Size returns the summed size of the indexed files.
func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// MaxSize returns the budget.
func (c *DiskCache) MaxSize() int64 { return c.maxSize }

// Dir returns the root directory.
func (c *DiskCache) Dir() string { return c.rootDir }

// Len returns the number of indexed entries.
func (c *DiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *DiskCache) Stats() Stats {
	c.mu.Lock()
	size, n := c.total, len(c.items)
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Puts:      c.puts.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
		MaxSize:   c.maxSize,
		Len:       n,
	}
}

// pruneIfNeededLocked evicts least recently used entries when incoming
// bytes would reach the budget, until usage falls below the low watermark.
func (c *DiskCache) pruneIfNeededLocked(incoming int64) {
	if c.total+incoming < c.maxSize {
		return
	}
	start := time.Now()
	before := c.total
	var pruned int
	lowWater := float64(c.maxSize) * HysteresisFactor

	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*diskEntry)
		if err := c.fs.Remove(c.path(ent.key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if c.logger != nil {
				c.logger.Warn("failed to evict cache file", "key", ent.key, "error", err)
			}
		} else {
			c.removeEntryLocked(el)
			c.evictions.Add(1)
			pruned++
		}
		if float64(c.total+incoming) < lowWater {
			break
		}
		el = prev
	}

	if c.logger != nil {
		c.logger.Debug("Disk cache pruned",
			"entries", pruned,
			"freed", before-c.total,
			"duration", time.Since(start),
		)
	}
}

func (c *DiskCache) putEntryLocked(key string, size int64) {
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*diskEntry)
		c.total += size - ent.size
		ent.size = size
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&diskEntry{key: key, size: size})
	c.total += size
}

func (c *DiskCache) removeEntryLocked(el *list.Element) {
	ent := el.Value.(*diskEntry)
	c.order.Remove(el)
	delete(c.items, ent.key)
	c.total -= ent.size
}

func (c *DiskCache) path(name string) string { return filepath.Join(c.rootDir, name) }

func (c *DiskCache) tempPath(key string) string { return c.path(key + TempSuffix) }

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) ||
		strings.HasSuffix(key, TempSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// TempWriter stages one payload. Close flushes the codec and syncs the
// file; Commit closes it implicitly.
type TempWriter struct {
	key  string
	file fs.File
	enc  io.WriteCloser

	once sync.Once
	err  error
}

// Key returns the entry key being written.
func (w *TempWriter) Key() string { return w.key }

func (w *TempWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

// Close is idempotent and returns the first error.
func (w *TempWriter) Close() error {
	w.once.Do(func() {
		if err := w.enc.Close(); err != nil {
			w.err = err
		}
		if err := w.file.Sync(); err != nil && w.err == nil {
			w.err = err
		}
		if err := w.file.Close(); err != nil && w.err == nil {
			w.err = err
		}
	})
	return w.err
}
