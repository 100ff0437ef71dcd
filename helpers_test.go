package imgcache

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache/downloader"
	"github.com/hupe1980/imgcache/internal/fs"
	"github.com/hupe1980/imgcache/renderable"
	"github.com/hupe1980/imgcache/testutil"
)

type testSlot struct {
	id     SlotID
	w, h   int
	closed atomic.Bool
}

func newSlot(id SlotID) *testSlot { return &testSlot{id: id} }

func (s *testSlot) ID() SlotID       { return s.id }
func (s *testSlot) Alive() bool      { return !s.closed.Load() }
func (s *testSlot) Size() (int, int) { return s.w, s.h }
func (s *testSlot) tearDown()        { s.closed.Store(true) }

type eventKind int

const (
	eventStart eventKind = iota
	eventSuccess
	eventFailure
)

type event struct {
	kind        eventKind
	slot        SlotID
	resource    *renderable.Resource
	placeholder image.Image
	cfg         DisplayConfig
}

// recordingRenderer records every callback.
type recordingRenderer struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingRenderer) OnLoadStart(slot Slot, placeholder image.Image) {
	r.add(event{kind: eventStart, slot: slot.ID(), placeholder: placeholder})
}

func (r *recordingRenderer) OnLoadSuccess(slot Slot, res *renderable.Resource, cfg DisplayConfig) {
	r.add(event{kind: eventSuccess, slot: slot.ID(), resource: res, cfg: cfg})
}

func (r *recordingRenderer) OnLoadFailure(slot Slot, placeholder image.Image) {
	r.add(event{kind: eventFailure, slot: slot.ID(), placeholder: placeholder})
}

func (r *recordingRenderer) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingRenderer) filter(kind eventKind, slot SlotID) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.kind == kind && e.slot == slot {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingRenderer) count(kind eventKind, slot SlotID) int {
	return len(r.filter(kind, slot))
}

type harness struct {
	*Loader
	t        *testing.T
	mem      *downloader.Memory
	renderer *recordingRenderer
	metrics  *BasicMetricsCollector
	fs       *fs.FaultyFS
	dir      string
}

// newHarness builds a loader over an in-memory downloader. withDisk
// enables a persistent cache in a temp dir.
func newHarness(t *testing.T, withDisk bool, optFns ...Option) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		mem:      downloader.NewMemory(),
		renderer: &recordingRenderer{},
		metrics:  &BasicMetricsCollector{},
		fs:       fs.NewFaultyFS(nil),
	}
	h.fs.SetUsableSpace(1 << 40)

	base := []Option{
		WithDownloader(h.mem),
		WithMetricsCollector(h.metrics),
		WithFileSystem(h.fs),
		WithRetryBackoff(time.Millisecond),
		WithGraceDelay(0),
	}
	if withDisk {
		h.dir = t.TempDir()
		base = append(base, WithDiskCache(h.dir, 16<<20))
	}

	l, err := New(h.renderer, append(base, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	h.Loader = l
	return h
}

// image registers a solid PNG of the given size under address.
func (h *harness) image(address string, w, hgt int) {
	h.mem.Set(address, testutil.SolidPNG(w, hgt, color.RGBA{R: 200, A: 255}))
}

func (h *harness) display(slot Slot, address string, optFns ...DisplayOption) DisplayStatus {
	h.t.Helper()
	select {
	case s := <-h.Display(slot, address, optFns...):
		return s
	case <-time.After(2 * time.Second):
		h.t.Fatal("display request not handled")
		return StatusRejected
	}
}

func (h *harness) sync() {
	h.t.Helper()
	require.NoError(h.t, h.Sync(h.t.Context()))
}

func (h *harness) waitFor(kind eventKind, slot SlotID, n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.renderer.count(kind, slot) >= n
	}, 2*time.Second, 2*time.Millisecond)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
