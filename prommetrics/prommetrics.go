package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/imgcache"
)

// Collector implements imgcache.MetricsCollector on Prometheus metrics.
type Collector struct {
	lookups    *prometheus.CounterVec
	fetches    *prometheus.CounterVec
	fetchBytes prometheus.Counter
	latency    *prometheus.HistogramVec
	loads      *prometheus.CounterVec
	discards   prometheus.Counter
}

var _ imgcache.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "imgcache"
	}
	c := &Collector{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by tier and result",
		}, []string{"tier", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Network fetch attempts by status",
		}, []string{"status"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes downloaded by successful fetches",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of fetch, decode and load operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Completed loads by source and status",
		}, []string{"source", "status"}),
		discards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_loads_total",
			Help:      "Loads dropped from the full cache queue",
		}),
	}
	for _, col := range []prometheus.Collector{c.lookups, c.fetches, c.fetchBytes, c.latency, c.loads, c.discards} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Collector {
	c, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCacheLookup implements imgcache.MetricsCollector.
func (c *Collector) RecordCacheLookup(tier imgcache.Tier, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.lookups.WithLabelValues(string(tier), result).Inc()
}

// RecordFetch implements imgcache.MetricsCollector.
func (c *Collector) RecordFetch(d time.Duration, bytes int64, err error) {
	c.fetches.WithLabelValues(status(err)).Inc()
	c.latency.WithLabelValues("fetch", status(err)).Observe(d.Seconds())
	if err == nil {
		c.fetchBytes.Add(float64(bytes))
	}
}

// RecordDecode implements imgcache.MetricsCollector.
func (c *Collector) RecordDecode(d time.Duration, err error) {
	c.latency.WithLabelValues("decode", status(err)).Observe(d.Seconds())
}

// RecordLoad implements imgcache.MetricsCollector.
func (c *Collector) RecordLoad(source imgcache.Source, d time.Duration, err error) {
	c.loads.WithLabelValues(source.String(), status(err)).Inc()
	c.latency.WithLabelValues("load", status(err)).Observe(d.Seconds())
}

// RecordDiscard implements imgcache.MetricsCollector.
func (c *Collector) RecordDiscard() {
	c.discards.Inc()
}
