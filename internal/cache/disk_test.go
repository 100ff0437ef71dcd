package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/imgcache/codec"
	"github.com/hupe1980/imgcache/internal/fs"
	"github.com/hupe1980/imgcache/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskCache(t *testing.T, dir string, maxSize int64, fsys fs.FileSystem) *DiskCache {
	t.Helper()
	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: maxSize, FS: fsys})
	require.NoError(t, err)
	require.NoError(t, c.Initialize())
	return c
}

// diskUsage sums the sizes of committed entry files in dir.
func diskUsage(t *testing.T, dir string) int64 {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var total int64
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), TempSuffix) {
			continue
		}
		info, err := e.Info()
		require.NoError(t, err)
		total += info.Size()
	}
	return total
}

func TestDiskCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1<<20, nil)

	require.NoError(t, c.Put(t.Context(), "k1", []byte("hello")))
	assert.FileExists(t, filepath.Join(dir, "k1"))
	assert.NoFileExists(t, filepath.Join(dir, "k1"+TempSuffix))

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))

	_, ok = c.Get("missing")
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Puts)
	assert.Equal(t, int64(5), st.Size)
	assert.Equal(t, 1, st.Len)
}

func TestDiskCache_Overwrite(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1<<20, nil)

	require.NoError(t, c.Put(t.Context(), "k", []byte("short")))
	require.NoError(t, c.Put(t.Context(), "k", []byte("much longer")))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "much longer", string(got))
	assert.Equal(t, int64(len("much longer")), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestDiskCache_PruneHysteresis(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1000, nil)

	for i := 0; i < 9; i++ {
		require.NoError(t, c.Put(t.Context(), fmt.Sprintf("k%d", i), make([]byte, 100)))
	}
	assert.Equal(t, int64(900), c.Size())
	assert.Zero(t, c.Stats().Evictions)

	// 900 + 100 reaches the budget: evict until usage + incoming < 900.
	require.NoError(t, c.Put(t.Context(), "k9", make([]byte, 100)))
	assert.Equal(t, int64(2), c.Stats().Evictions)
	assert.Equal(t, int64(800), c.Size())
	assert.False(t, c.Contains("k0"))
	assert.False(t, c.Contains("k1"))
	assert.True(t, c.Contains("k2"))
	assert.NoFileExists(t, filepath.Join(dir, "k0"))
	assert.Equal(t, diskUsage(t, dir), c.Size())
}

func TestDiskCache_PruneRespectsRecency(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 300, nil)

	require.NoError(t, c.Put(t.Context(), "a", make([]byte, 100)))
	require.NoError(t, c.Put(t.Context(), "b", make([]byte, 100)))
	_, ok := c.Get("a")
	require.True(t, ok)

	require.NoError(t, c.Put(t.Context(), "c", make([]byte, 100)))
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.Equal(t, []string{"a", "c"}, c.Keys())
}

func TestDiskCache_IndexMatchesDisk(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 4096, nil)
	rng := testutil.NewRNG(42)

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("key%d", rng.Intn(40))
		switch rng.Intn(4) {
		case 0, 1:
			require.NoError(t, c.Put(t.Context(), key, rng.Bytes(1+rng.Intn(600))))
		case 2:
			c.Get(key)
		default:
			require.NoError(t, c.Remove(key))
		}
		require.Equal(t, diskUsage(t, dir), c.Size(), "after op %d", i)
		require.Less(t, c.Size(), c.MaxSize())
	}
}

func TestDiskCache_Initialize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "half"+TempSuffix), []byte("12"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new"), []byte("123"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old"), past, past))

	c := newDiskCache(t, dir, 1<<20, nil)
	require.NoError(t, c.Initialize(), "idempotent")

	assert.Equal(t, []string{"old", "new"}, c.Keys())
	assert.Equal(t, int64(8), c.Size())
	assert.NoFileExists(t, filepath.Join(dir, "empty"))
	assert.NoFileExists(t, filepath.Join(dir, "half"+TempSuffix))

	got, ok := c.Get("old")
	require.True(t, ok)
	assert.Equal(t, "12345", string(got))
}

func TestDiskCache_LazyInitialize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k"), []byte("v"), 0o644))

	c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20})
	require.NoError(t, err)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
}

func TestDiskCache_CrashSafety(t *testing.T) {
	t.Run("failed temp write keeps previous entry", func(t *testing.T) {
		dir := t.TempDir()
		ffs := fs.NewFaultyFS(nil)
		c := newDiskCache(t, dir, 1<<20, ffs)
		require.NoError(t, c.Put(t.Context(), "k", []byte("committed")))

		ffs.AddRule(TempSuffix, fs.Fault{FailAfterBytes: 3})
		err := c.Put(t.Context(), "k", []byte("replacement"))
		require.ErrorIs(t, err, fs.ErrInjected)

		got, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "committed", string(got))
		assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))
		assert.Equal(t, diskUsage(t, dir), c.Size())
	})

	t.Run("crash before commit", func(t *testing.T) {
		dir := t.TempDir()
		c := newDiskCache(t, dir, 1<<20, nil)
		require.NoError(t, c.Put(t.Context(), "k", []byte("committed")))

		w, err := c.OpenTempWriter(t.Context(), "k")
		require.NoError(t, err)
		_, err = w.Write([]byte("half"))
		require.NoError(t, err)
		// Process dies here: no Commit, no Close.

		restarted := newDiskCache(t, dir, 1<<20, nil)
		got, ok := restarted.Get("k")
		require.True(t, ok)
		assert.Equal(t, "committed", string(got))
		assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))
		_ = w.Close()
	})

	t.Run("committed entry survives restart", func(t *testing.T) {
		dir := t.TempDir()
		c := newDiskCache(t, dir, 1<<20, nil)
		w, err := c.OpenTempWriter(t.Context(), "k")
		require.NoError(t, err)
		_, err = w.Write([]byte("payload"))
		require.NoError(t, err)
		require.NoError(t, c.Commit("k"))

		restarted := newDiskCache(t, dir, 1<<20, nil)
		got, ok := restarted.Get("k")
		require.True(t, ok)
		assert.Equal(t, "payload", string(got))
	})

	t.Run("failed rename", func(t *testing.T) {
		dir := t.TempDir()
		ffs := fs.NewFaultyFS(nil)
		c := newDiskCache(t, dir, 1<<20, ffs)
		require.NoError(t, c.Put(t.Context(), "k", []byte("committed")))

		ffs.AddRule(TempSuffix, fs.Fault{FailAfterBytes: -1, FailOnRename: true})
		require.ErrorIs(t, c.Put(t.Context(), "k", []byte("replacement")), fs.ErrInjected)

		got, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, "committed", string(got))
		assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))
	})

	t.Run("failed stat of temp file", func(t *testing.T) {
		dir := t.TempDir()
		ffs := fs.NewFaultyFS(nil)
		c := newDiskCache(t, dir, 1<<20, ffs)

		ffs.AddRule(TempSuffix, fs.Fault{FailAfterBytes: -1, FailOnStat: true})
		require.ErrorIs(t, c.Put(t.Context(), "k", []byte("payload")), fs.ErrInjected)

		assert.False(t, c.Contains("k"))
		assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))
		assert.Zero(t, c.Size())
	})
}

func TestDiskCache_TempWriterErrors(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1<<20, nil)

	w, err := c.OpenTempWriter(t.Context(), "k")
	require.NoError(t, err)
	assert.Equal(t, "k", w.Key())

	_, err = c.OpenTempWriter(t.Context(), "k")
	assert.ErrorIs(t, err, ErrEditInProgress)

	assert.ErrorIs(t, c.Commit("k"), ErrEmptyEntry)
	assert.False(t, c.Contains("k"))
	assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))

	assert.ErrorIs(t, c.Commit("k"), ErrNoEdit)

	w, err = c.OpenTempWriter(t.Context(), "k")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, c.DiscardTemp("k"))
	assert.False(t, c.Contains("k"))
	assert.NoFileExists(t, filepath.Join(dir, "k"+TempSuffix))
}

func TestDiskCache_InvalidKeys(t *testing.T) {
	c := newDiskCache(t, t.TempDir(), 1<<20, nil)
	for _, key := range []string{"", ".", "..", "a/b", `a\b`, "x" + TempSuffix} {
		assert.ErrorIs(t, c.Put(t.Context(), key, []byte("v")), ErrInvalidKey, key)
		_, ok := c.Get(key)
		assert.False(t, ok)
	}
}

func TestDiskCache_MissingFileIsCorrected(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1<<20, nil)
	require.NoError(t, c.Put(t.Context(), "k", []byte("value")))
	require.NoError(t, os.Remove(filepath.Join(dir, "k")))

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Contains("k"))
	assert.Zero(t, c.Size())
}

func TestDiskCache_RemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(t, dir, 1<<20, nil)
	require.NoError(t, c.Put(t.Context(), "a", []byte("1")))
	require.NoError(t, c.Put(t.Context(), "b", []byte("22")))

	require.NoError(t, c.Remove("a"))
	require.NoError(t, c.Remove("a"))
	assert.NoFileExists(t, filepath.Join(dir, "a"))
	assert.Equal(t, int64(2), c.Size())

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
	assert.Zero(t, diskUsage(t, dir))

	require.NoError(t, c.Put(t.Context(), "c", []byte("333")))
	assert.Equal(t, int64(3), c.Size())
}

func TestDiskCache_Codec(t *testing.T) {
	for _, name := range []string{"lz4", "zstd"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			cd, ok := codec.ByName(name)
			require.True(t, ok)
			c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20, Codec: cd})
			require.NoError(t, err)

			payload := []byte(strings.Repeat("abcdefgh", 1024))
			require.NoError(t, c.Put(t.Context(), "k", payload))
			assert.Less(t, c.Size(), int64(len(payload)))
			assert.Equal(t, diskUsage(t, dir), c.Size())

			got, ok := c.Get("k")
			require.True(t, ok)
			assert.Equal(t, payload, got)
		})
	}

	t.Run("corrupt payload is dropped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "k"), []byte("not zstd"), 0o644))
		c, err := NewDiskCache(DiskCacheConfig{RootDir: dir, MaxSizeBytes: 1 << 20, Codec: codec.Zstd{}})
		require.NoError(t, err)

		_, ok := c.Get("k")
		assert.False(t, ok)
		assert.False(t, c.Contains("k"))
		assert.NoFileExists(t, filepath.Join(dir, "k"))
	})
}

func TestNewDiskCache_Validation(t *testing.T) {
	_, err := NewDiskCache(DiskCacheConfig{RootDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewDiskCache(DiskCacheConfig{MaxSizeBytes: 10})
	assert.Error(t, err)
}
