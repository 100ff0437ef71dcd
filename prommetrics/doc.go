// Package prommetrics exports loader metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	l, _ := imgcache.New(renderer, imgcache.WithMetricsCollector(prommetrics.MustNew(reg, "")))
package prommetrics
