package prommetrics

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache"
	"github.com/hupe1980/imgcache/downloader"
	"github.com/hupe1980/imgcache/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "test")
	require.NoError(t, err)

	c.RecordCacheLookup(imgcache.TierMemory, true)
	c.RecordCacheLookup(imgcache.TierMemory, false)
	c.RecordCacheLookup(imgcache.TierDisk, false)
	c.RecordFetch(10*time.Millisecond, 100, nil)
	c.RecordFetch(time.Millisecond, 0, errors.New("boom"))
	c.RecordDecode(time.Millisecond, nil)
	c.RecordLoad(imgcache.SourceNetwork, 20*time.Millisecond, nil)
	c.RecordLoad(imgcache.SourceNone, time.Millisecond, errors.New("boom"))
	c.RecordDiscard()

	assert.Equal(t, 1.0, promtest.ToFloat64(c.lookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.lookups.WithLabelValues("disk", "miss")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.fetches.WithLabelValues("error")))
	assert.Equal(t, 100.0, promtest.ToFloat64(c.fetchBytes))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.loads.WithLabelValues("network", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.loads.WithLabelValues("none", "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.discards))

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	hist, ok := byName["test_operation_latency_seconds"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_HISTOGRAM, hist.GetType())

	var samples uint64
	for _, m := range hist.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(5), samples)
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "dup")
	require.NoError(t, err)
	_, err = New(reg, "dup")
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg, "dup") })
}

func TestCollector_WithLoader(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNew(reg, "")

	mem := downloader.NewMemory()
	mem.Set("mem://a.png", testutil.SolidPNG(8, 8, color.White))

	l, err := imgcache.New(nil,
		imgcache.WithDownloader(mem),
		imgcache.WithMetricsCollector(c),
	)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	_, err = l.Load(t.Context(), "mem://a.png", 0, 0)
	require.NoError(t, err)
	_, err = l.Load(t.Context(), "mem://a.png", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(c.loads.WithLabelValues("network", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.loads.WithLabelValues("memory", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.lookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.fetches.WithLabelValues("success")))
}
