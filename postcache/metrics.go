package postcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_hits",
	Help: "Number of post listing cache hits",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_misses",
	Help: "Number of post listing cache misses (absent or expired)",
})

var cacheSets = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_sets",
	Help: "Number of post listings stored in the cache",
})

var cacheStaleSets = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_stale_sets",
	Help: "Number of cache fills dropped because the owner was invalidated during the read",
})

var cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_invalidations",
	Help: "Number of owner invalidations",
})

var cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "postroom_post_cache_evictions",
	Help: "Number of entries evicted to stay under the size bound",
})

var cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "postroom_post_cache_entries",
	Help: "Number of owners with a cached post listing",
})

// ReportMetrics refreshes the occupancy gauge.
func (c *Cache) ReportMetrics() {
	cacheEntries.Set(float64(c.entries.Len()))
}
