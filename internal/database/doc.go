// Package database provides the SQLite index store for media-index.
//
// The store holds one row per media file in the media table and mirrors the
// searchable columns into the media_fts FTS5 table. Triggers on media keep
// the two in step inside whatever transaction mutates media, so a crash can
// never leave them disagreeing. The read views (v_search, v_countries,
// v_cities, v_cameras) are the contract consumed by the search UI and are
// recreated on every open.
//
// FTS5 is compiled into github.com/mattn/go-sqlite3 only with the
// sqlite_fts5 build tag:
//
//	go build -tags sqlite_fts5 .
//
// The database uses WAL mode so the search UI can read while a run commits.
package database
