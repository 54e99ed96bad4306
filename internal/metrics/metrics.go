// Package metrics exposes prometheus counters for the prompt cache and the
// upstream workflow calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/briangreenhill/img2prompt/cache"
)

type Metrics struct {
	registry         *prometheus.Registry
	cacheLookups     *prometheus.CounterVec
	cacheExpired     prometheus.Counter
	hashFallbacks    prometheus.Counter
	generations      *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	coalesced        prometheus.Counter

	variants map[string]bool
}

// New builds the metric set on a private registry. Variant labels outside
// knownVariants are reported as "other" to keep label cardinality bounded.
func New(knownVariants ...string) *Metrics {
	registry := prometheus.NewRegistry()

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "img2prompt_cache_lookups_total",
		Help: "Prompt cache lookups by variant and result",
	}, []string{"variant", "result"})

	cacheExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "img2prompt_cache_expired_total",
		Help: "Cache entries removed because they outlived the TTL",
	})

	hashFallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "img2prompt_hash_fallbacks_total",
		Help: "Image fingerprints degraded to one-off fallback tokens",
	})

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "img2prompt_generations_total",
		Help: "Prompt generation requests by variant and outcome",
	}, []string{"variant", "outcome"})

	upstreamErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "img2prompt_upstream_errors_total",
		Help: "Upstream failures by stage",
	}, []string{"stage"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "img2prompt_upstream_duration_seconds",
		Help:    "Upstream call latency by stage",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"stage"})

	coalesced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "img2prompt_coalesced_total",
		Help: "Requests that shared another request's in-flight upstream call",
	})

	registry.MustRegister(
		cacheLookups,
		cacheExpired,
		hashFallbacks,
		generations,
		upstreamErrors,
		upstreamDuration,
		coalesced,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	variants := make(map[string]bool, len(knownVariants))
	for _, v := range knownVariants {
		variants[v] = true
	}

	return &Metrics{
		registry:         registry,
		cacheLookups:     cacheLookups,
		cacheExpired:     cacheExpired,
		hashFallbacks:    hashFallbacks,
		generations:      generations,
		upstreamErrors:   upstreamErrors,
		upstreamDuration: upstreamDuration,
		coalesced:        coalesced,
		variants:         variants,
	}
}

func (m *Metrics) label(variant string) string {
	if m.variants[variant] {
		return variant
	}
	return "other"
}

// WatchStore registers a gauge reporting the live entry count of s.
func (m *Metrics) WatchStore(s cache.Maintainer) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "img2prompt_cache_entries",
		Help: "Entries currently held by the prompt cache",
	}, func() float64 {
		return float64(s.Stats().TotalEntries)
	}))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hit implements cache.Observer.
func (m *Metrics) Hit(variant string) {
	m.cacheLookups.WithLabelValues(m.label(variant), "hit").Inc()
}

// Miss implements cache.Observer.
func (m *Metrics) Miss(variant string) {
	m.cacheLookups.WithLabelValues(m.label(variant), "miss").Inc()
}

// Expired implements cache.Observer.
func (m *Metrics) Expired(n int) {
	m.cacheExpired.Add(float64(n))
}

// HashFallback implements cache.Observer.
func (m *Metrics) HashFallback(error) {
	m.hashFallbacks.Inc()
}

func (m *Metrics) RecordGeneration(variant, outcome string) {
	m.generations.WithLabelValues(m.label(variant), outcome).Inc()
}

func (m *Metrics) RecordUpstream(stage string, d time.Duration, err error) {
	m.upstreamDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.upstreamErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) RecordCoalesced() {
	m.coalesced.Inc()
}

var _ cache.Observer = (*Metrics)(nil)
