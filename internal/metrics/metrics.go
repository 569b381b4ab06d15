package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_transaction_duration_seconds",
			Help:    "Duration of batch transactions in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_db_rows_affected",
			Help:    "Rows affected per write operation",
			Buckets: []float64{1, 10, 100, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"operation"},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_indexer_last_run_timestamp",
			Help: "Timestamp of the last completed indexer run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerFilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_files_scanned_total",
			Help: "Total number of media files seen by the scanner",
		},
	)

	IndexerFilesUnchanged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_files_unchanged_total",
			Help: "Total number of files skipped because their signature was unchanged",
		},
	)

	IndexerFilesIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_files_indexed_total",
			Help: "Total number of records written to the index",
		},
	)

	IndexerFilesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_files_pruned_total",
			Help: "Total number of records removed because their file disappeared",
		},
	)

	IndexerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_index_indexer_batch_duration_seconds",
			Help:    "Time to extract, normalize and commit one batch",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_indexer_errors_total",
			Help: "Total number of indexer runs that ended in error",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)

	IndexerPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_indexer_phase",
			Help: "Current reconciliation phase (1 for the active phase)",
		},
		[]string{"phase"},
	)
)

// Extractor and geocoder metrics
var (
	ExtractorInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_extractor_invocations_total",
			Help: "Metadata extractor invocations by backend and outcome",
		},
		[]string{"backend", "outcome"}, // outcome: "ok", "partial", "no_output"
	)

	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_index_extractor_duration_seconds",
			Help:    "Metadata extraction time per batch",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	ExtractorRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_extractor_records_total",
			Help: "Metadata records returned by the extractor",
		},
		[]string{"backend"},
	)

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_geocode_lookups_total",
			Help: "Reverse geocode lookups by outcome",
		},
		[]string{"outcome"}, // "resolved", "no_match", "invalid", "error"
	)

	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_index_geocode_cache_hits_total",
			Help: "Reverse geocode lookups served from the coordinate cache",
		},
	)
)

// Library metrics
var (
	MediaRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_index_records",
			Help: "Number of indexed media records by type",
		},
		[]string{"type"},
	)

	MediaRecordsWithLocation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_records_with_location",
			Help: "Number of indexed records carrying GPS coordinates",
		},
	)

	MediaFTSRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_index_fts_rows",
			Help: "Number of rows in the full-text shadow index",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_index_filesystem_stale_errors_total",
			Help: "ESTALE errors observed by filesystem operations",
		},
		[]string{"operation"},
	)
)

// Phases of a reconciliation run, as reported by IndexerPhase.
var Phases = []string{"scanning", "batching", "extracting", "normalizing", "committing", "pruning", "done"}

// SetPhase marks phase as the active phase.
func SetPhase(phase string) {
	for _, p := range Phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		IndexerPhase.WithLabelValues(p).Set(v)
	}
}
