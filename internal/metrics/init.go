package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first scrape or push.
func InitializeMetrics() {
	for _, op := range []string{"initialize_schema", "migrate", "upsert_batch", "delete_paths",
		"load_signatures", "list_paths", "count", "calculate_stats", "rebuild_fts", "integrity_check", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}

	for _, backend := range []string{"exiftool", "native"} {
		for _, outcome := range []string{"ok", "partial", "no_output"} {
			ExtractorInvocations.WithLabelValues(backend, outcome)
		}
		ExtractorDuration.WithLabelValues(backend)
		ExtractorRecords.WithLabelValues(backend)
	}

	for _, outcome := range []string{"resolved", "no_match", "invalid", "error"} {
		GeocodeLookups.WithLabelValues(outcome)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, t := range []string{"image", "video", "other"} {
		MediaRecords.WithLabelValues(t)
	}

	SetPhase("")
}
