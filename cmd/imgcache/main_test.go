package main

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, testutil.SolidPNG(12, 8, color.White), 0o644))
	return "file://" + p
}

func TestCLI_PrefetchStatsClear(t *testing.T) {
	src := t.TempDir()
	cacheDir := t.TempDir()
	a := writeImage(t, src, "a.png")
	b := writeImage(t, src, "b.png")
	common := []string{"--dir", cacheDir, "--size", "6MiB", "--log-level", "error"}

	_, err := run(t, append([]string{"prefetch", a, b}, common...)...)
	require.NoError(t, err)

	out, err := run(t, append([]string{"stats"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "entries:   2")
	assert.Contains(t, out, cacheDir)

	_, err = run(t, append([]string{"remove", a}, common...)...)
	require.NoError(t, err)
	out, err = run(t, append([]string{"stats"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "entries:   1")

	_, err = run(t, append([]string{"clear"}, common...)...)
	require.NoError(t, err)
	out, err = run(t, append([]string{"stats"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "entries:   0")
}

func TestCLI_Fetch(t *testing.T) {
	src := t.TempDir()
	a := writeImage(t, src, "a.png")

	out, err := run(t, "fetch", a, "--dir", t.TempDir(), "--size", "6MiB", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "12x8")

	_, err = run(t, "fetch", "file://"+filepath.Join(src, "missing.png"), "--dir", t.TempDir(), "--size", "6MiB", "--log-level", "error")
	assert.Error(t, err)
}

func TestCLI_InvalidFlags(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "stats", "--dir", dir, "--codec", "brotli")
	assert.ErrorContains(t, err, "unknown codec")

	_, err = run(t, "stats", "--dir", dir, "--size", "lots")
	assert.ErrorContains(t, err, "invalid --size")

	_, err = run(t, "stats", "--dir", dir, "--memory-limit", "plenty")
	assert.ErrorContains(t, err, "invalid --memory-limit")

	_, err = run(t, "stats", "--dir", dir, "--log-format", "xml")
	assert.ErrorContains(t, err, "unknown log format")
}

func TestReadAddresses(t *testing.T) {
	in := strings.NewReader("http://x/a\n\n# comment\n  http://x/b  \n")
	got, err := readAddresses(in, "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://x/a", "http://x/b"}, got)

	_, err = readAddresses(nil, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 50.0, percent(5, 10), 1e-9)
	assert.Zero(t, percent(5, 0))
}
