// Package startup handles configuration loading, validation and startup
// logging for media-index.
//
// # Configuration
//
// [LoadConfig] reads media-index.yaml from the first of ., $HOME/.config/media-index
// and /etc/media-index (or the file named by MEDIA_INDEX_CONFIG), then applies
// MEDIA_INDEX_* environment overrides. Nested keys use underscores in the
// environment, so prune.enabled becomes MEDIA_INDEX_PRUNE_ENABLED.
//
//   - root_dir: media tree to index (default: /media, must exist)
//   - db_path: SQLite index file (default: /database/media_index.sqlite)
//   - batch_size: files per extractor call and per transaction (default: 2000)
//   - extensions: allow-listed file extensions
//   - skip_hidden: skip dot-files and dot-directories (default: true)
//   - prune.enabled, prune.skip_when_scan_empty: stale row removal (default: true, true)
//   - prune.vacuum: VACUUM the database after a prune removed rows (default: false)
//   - extractor.backend: auto, exiftool or native (default: auto)
//   - extractor.path, extractor.timeout: exiftool binary and per-batch timeout
//   - geocoder.enabled, geocoder.dataset, geocoder.cache_size, geocoder.max_distance_km
//   - log.level, log.file_path and rotation settings
//   - metrics.listen_addr: optional status server address
//   - metrics.pushgateway_url: optional Pushgateway to push to after a run
//
// A missing root yields [ErrRootNotFound]. The database directory is created
// if needed and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
package startup
