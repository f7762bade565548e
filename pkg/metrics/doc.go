// Package metrics defines the instrumentation hooks used by the notification
// queue and the tiered response cache, with a no-op implementation and one
// backed by Prometheus client_golang.
//
//	collector, err := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
//	if err != nil {
//	    return err
//	}
//	store, err := cache.NewTieredStore(mem, disk, backend, cache.WithCollector(collector))
package metrics
