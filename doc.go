// Package main provides the media-index command.
//
// media-index catalogs photos and videos under a directory tree into a
// SQLite database with full-text search. Each invocation performs one
// reconciliation run:
//
//  1. Configuration Loading: media-index.yaml and MEDIA_INDEX_* variables
//  2. Database Initialization: opens the index, migrating older schemas
//  3. Component Initialization:
//     - Extractor: exiftool subprocess, or in-process EXIF decoding
//     - Geocoder: offline reverse geocoding with an LRU cache
//     - Status server: /metrics, /healthz and /progress (if configured)
//  4. Index Run: scan, extract changed files in batches, prune deleted files
//  5. Metrics Push: to a Prometheus Pushgateway (if configured)
//
// SIGINT and SIGTERM stop the run after the current batch commits. The
// command exits 1 when the media root is missing or the run fails.
//
// The binary must be built with the sqlite_fts5 tag:
//
//	go build -tags sqlite_fts5 .
package main
