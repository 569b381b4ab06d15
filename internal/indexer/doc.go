// Package indexer reconciles the media index with the filesystem.
//
// A run walks the configured root, compares each file's (size, mtime)
// signature with the stored one and sends only new or changed files through
// the pipeline:
//   - Extract: embedded metadata for a batch of files in one extractor call
//   - Normalize: capture time, year, GPS position and camera fields
//   - Resolve: offline reverse geocoding of the GPS position
//   - Commit: one store transaction per batch
//
// After the last batch, rows whose file no longer exists are pruned. A run
// is restartable at any point: committed batches are skipped on the next
// run because their signatures match. Cancellation is honored between
// batches only.
//
// Hidden files and directories (prefixed with '.') are excluded when
// SkipHidden is set.
package indexer
