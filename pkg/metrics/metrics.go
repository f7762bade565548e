package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheCollector receives events from the tiered response cache.
// Calls happen while the store lock is held, so implementations must be cheap
// and must not call back into the cache.
type CacheCollector interface {
	IncHit(tier string)
	IncMiss()
	IncEviction(tier string)
	IncDemotion()
	IncPromotion()
	SetUsage(tier string, bytes int64)
}

// QueueCollector receives events from the notification queue.
type QueueCollector interface {
	IncEnqueued(style string)
	IncCoalesced()
	IncDelivered(style string)
	SetPending(style string, n int)
}

// Collector is satisfied by implementations serving both subsystems.
type Collector interface {
	CacheCollector
	QueueCollector
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncHit(string)          {}
func (noopCollector) IncMiss()               {}
func (noopCollector) IncEviction(string)     {}
func (noopCollector) IncDemotion()           {}
func (noopCollector) IncPromotion()          {}
func (noopCollector) SetUsage(string, int64) {}
func (noopCollector) IncEnqueued(string)     {}
func (noopCollector) IncCoalesced()          {}
func (noopCollector) IncDelivered(string)    {}
func (noopCollector) SetPending(string, int) {}

// PrometheusCollector exposes cache and queue metrics via Prometheus.
type PrometheusCollector struct {
	cacheHits       *prometheus.CounterVec
	cacheMisses     prometheus.Counter
	cacheEvictions  *prometheus.CounterVec
	cacheDemotions  prometheus.Counter
	cachePromotions prometheus.Counter
	cacheUsage      *prometheus.GaugeVec

	queueEnqueued  *prometheus.CounterVec
	queueCoalesced prometheus.Counter
	queueDelivered *prometheus.CounterVec
	queuePending   *prometheus.GaugeVec
}

// NewPrometheusCollector registers the metrics with reg, or with the default
// registerer when reg is nil. Registering twice against the same registerer
// reuses the collectors that are already there.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var (
		p   PrometheusCollector
		err error
	)

	if p.cacheHits, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "urlcache_hits_total",
		Help: "Number of cache lookups served, by tier.",
	}, []string{"tier"})); err != nil {
		return nil, err
	}
	if p.cacheMisses, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urlcache_misses_total",
		Help: "Number of cache lookups that found nothing.",
	})); err != nil {
		return nil, err
	}
	if p.cacheEvictions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "urlcache_evictions_total",
		Help: "Number of entries evicted for capacity, by tier.",
	}, []string{"tier"})); err != nil {
		return nil, err
	}
	if p.cacheDemotions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urlcache_demotions_total",
		Help: "Number of entries moved from memory to disk.",
	})); err != nil {
		return nil, err
	}
	if p.cachePromotions, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urlcache_promotions_total",
		Help: "Number of entries moved from disk to memory.",
	})); err != nil {
		return nil, err
	}
	if p.cacheUsage, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "urlcache_usage_bytes",
		Help: "Bytes currently resident, by tier.",
	}, []string{"tier"})); err != nil {
		return nil, err
	}
	if p.queueEnqueued, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyqueue_enqueued_total",
		Help: "Number of notifications enqueued, by posting style.",
	}, []string{"style"})); err != nil {
		return nil, err
	}
	if p.queueCoalesced, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifyqueue_coalesced_total",
		Help: "Number of queued notifications dropped or replaced by coalescing.",
	})); err != nil {
		return nil, err
	}
	if p.queueDelivered, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyqueue_delivered_total",
		Help: "Number of notifications posted to the center, by posting style.",
	}, []string{"style"})); err != nil {
		return nil, err
	}
	if p.queuePending, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "notifyqueue_pending",
		Help: "Number of buffered notifications, by posting style.",
	}, []string{"style"})); err != nil {
		return nil, err
	}

	return &p, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (p *PrometheusCollector) IncHit(tier string) {
	p.cacheHits.WithLabelValues(tier).Inc()
}

func (p *PrometheusCollector) IncMiss() {
	p.cacheMisses.Inc()
}

func (p *PrometheusCollector) IncEviction(tier string) {
	p.cacheEvictions.WithLabelValues(tier).Inc()
}

func (p *PrometheusCollector) IncDemotion() {
	p.cacheDemotions.Inc()
}

func (p *PrometheusCollector) IncPromotion() {
	p.cachePromotions.Inc()
}

// SetUsage updates the resident byte gauge for a tier.
func (p *PrometheusCollector) SetUsage(tier string, bytes int64) {
	p.cacheUsage.WithLabelValues(tier).Set(float64(bytes))
}

func (p *PrometheusCollector) IncEnqueued(style string) {
	p.queueEnqueued.WithLabelValues(style).Inc()
}

func (p *PrometheusCollector) IncCoalesced() {
	p.queueCoalesced.Inc()
}

func (p *PrometheusCollector) IncDelivered(style string) {
	p.queueDelivered.WithLabelValues(style).Inc()
}

// SetPending updates the buffered notification gauge for a posting style.
func (p *PrometheusCollector) SetPending(style string, n int) {
	p.queuePending.WithLabelValues(style).Set(float64(n))
}
