package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed metrics
	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_feed_frames_total",
			Help: "Total number of frames decoded from the feed",
		},
	)

	FramesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_feed_frames_discarded_total",
			Help: "Total number of frames discarded by the commit/create filter",
		},
	)

	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_feed_decode_errors_total",
			Help: "Total number of malformed frames skipped",
		},
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_feed_reconnects_total",
			Help: "Total number of feed reconnect attempts",
		},
	)

	// Queue metrics
	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archiver_ingest_queue_depth",
			Help: "Current depth of the ingestion queue",
		},
	)

	PersistQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archiver_persist_queue_depth",
			Help: "Current depth of the persistence queue",
		},
	)

	// Handle resolution metrics
	HandleCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_handle_cache_hits_total",
			Help: "Total number of handle lookups served from the cache",
		},
	)

	HandleCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_handle_cache_misses_total",
			Help: "Total number of handle lookups not found in the cache",
		},
	)

	HandleResolutionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_handle_resolution_errors_total",
			Help: "Total number of failed remote handle lookups",
		},
	)

	// Persistence metrics
	RecordsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_records_persisted_total",
			Help: "Total number of records appended to segment files",
		},
	)

	PersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archiver_persistence_errors_total",
			Help: "Total number of batches lost to write failures",
		},
	)
)
