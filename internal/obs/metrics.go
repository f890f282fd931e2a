// Package obs holds the Prometheus metrics exposed by a workspace: cache
// hit/miss counters, block read/write counters, HNSW insert/query latency
// histograms, and sync/reblock throughput counters.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and histogram a workspace emits. Each
// Metrics is backed by its own prometheus.Registry rather than the
// default registerer, so opening more than one workspace in the same
// process — as tests routinely do — never panics on duplicate collector
// registration.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	BlockReads  prometheus.Counter
	BlockWrites prometheus.Counter

	InsertLatency prometheus.Histogram
	QueryLatency  prometheus.Histogram
	QueryErrors   prometheus.Counter

	SyncedEmbeddings prometheus.Counter
	ReblockDuration  prometheus.Histogram
}

// NewMetrics builds a fresh, independently registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_cache_hits_total",
			Help: "Total embedding cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_cache_misses_total",
			Help: "Total embedding cache misses.",
		}),
		BlockReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_block_reads_total",
			Help: "Total block file reads.",
		}),
		BlockWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_block_writes_total",
			Help: "Total block file writes.",
		}),
		InsertLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "embedstore_insert_latency_seconds",
			Help: "HNSW insertion latency.",
		}),
		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "embedstore_query_latency_seconds",
			Help: "HNSW query latency.",
		}),
		QueryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_query_errors_total",
			Help: "Total query errors.",
		}),
		SyncedEmbeddings: factory.NewCounter(prometheus.CounterOpts{
			Name: "embedstore_synced_embeddings_total",
			Help: "Total embeddings written by a sync pass.",
		}),
		ReblockDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "embedstore_reblock_duration_seconds",
			Help: "Duration of reblocking passes.",
		}),
	}
}
