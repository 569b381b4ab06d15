// Package metrics provides Prometheus instrumentation for the media indexer.
//
// All metrics are prefixed with "media_index_" and registered on the default
// registry through promauto.
//
// # Metric Categories
//
// ## Database Metrics
//   - DBQueryTotal / DBQueryDuration: queries by operation and status
//   - DBTransactionDuration: batch transaction time by outcome
//   - DBRowsAffected: rows touched per upsert/delete statement batch
//
// ## Indexer Metrics
//   - IndexerRunsTotal, IndexerErrors, IndexerIsRunning
//   - IndexerLastRunTimestamp, IndexerLastRunDuration
//   - IndexerFilesScanned, IndexerFilesIndexed, IndexerFilesPruned, IndexerFilesUnchanged
//   - IndexerBatchDuration, IndexerPhase
//
// ## Extractor and Geocoder Metrics
//   - ExtractorInvocations (by backend and outcome), ExtractorDuration
//   - GeocodeLookups (by outcome), GeocodeCacheHits
//
// ## Library Metrics
//   - MediaRecords (by media type), MediaRecordsWithLocation, MediaFTSRows
//
// ## Filesystem Metrics
//   - FilesystemRetryAttempts / Success / Failures, FilesystemStaleErrors
//
// # Exposition
//
// A run can expose metrics while it works through StatusServer (/metrics,
// /healthz and /progress on a gorilla/mux router), and can push the final
// values to a Prometheus Pushgateway with Push, which suits cron-style
// invocations that exit before any scrape happens.
package metrics
