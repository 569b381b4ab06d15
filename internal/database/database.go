package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// Default timeout for single-statement operations
const defaultTimeout = 5 * time.Second

// Database manages the media index.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	txStart time.Time // set by BeginBatch for transaction metrics
}

// New opens (creating if needed) the index at dbPath, migrates older layouts
// and recreates the read views.
// dbPath is the database FILE; its parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout lets the search UI hold read transactions while we commit
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer, a few readers for stats and integrity checks
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

// schemaVersion is stored under the schema_version metadata key.
const schemaVersion = "2"

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

const mediaSchema = `
CREATE TABLE IF NOT EXISTS media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE CHECK (path <> ''),
	filename TEXT NOT NULL,
	ext TEXT NOT NULL,
	media_type TEXT NOT NULL DEFAULT 'other',
	size_bytes INTEGER NOT NULL,
	mtime INTEGER NOT NULL,

	created_utc TEXT NOT NULL,
	taken_utc TEXT,
	year INTEGER NOT NULL,

	lat REAL,
	lon REAL,

	country_code TEXT,
	country_name TEXT,
	city TEXT,
	admin1 TEXT,
	admin2 TEXT,

	camera_make TEXT,
	camera_model TEXT,

	indexed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),

	CHECK ((lat IS NULL) = (lon IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_media_taken_utc ON media(taken_utc);
CREATE INDEX IF NOT EXISTS idx_media_country_code ON media(country_code);
CREATE INDEX IF NOT EXISTS idx_media_year ON media(year);
CREATE INDEX IF NOT EXISTS idx_media_latlon ON media(lat, lon);
CREATE INDEX IF NOT EXISTS idx_media_mtime ON media(mtime);

-- Shadow search table. rowid is media.id.
CREATE VIRTUAL TABLE IF NOT EXISTS media_fts USING fts5(
	path,
	filename,
	country_name,
	city,
	admin1,
	tokenize='trigram'
);

CREATE TRIGGER IF NOT EXISTS media_ai AFTER INSERT ON media BEGIN
	INSERT INTO media_fts(rowid, path, filename, country_name, city, admin1)
	VALUES (new.id, new.path, new.filename, new.country_name, new.city, new.admin1);
END;

CREATE TRIGGER IF NOT EXISTS media_ad AFTER DELETE ON media BEGIN
	DELETE FROM media_fts WHERE rowid = old.id;
END;

CREATE TRIGGER IF NOT EXISTS media_au AFTER UPDATE ON media BEGIN
	DELETE FROM media_fts WHERE rowid = old.id;
	INSERT INTO media_fts(rowid, path, filename, country_name, city, admin1)
	VALUES (new.id, new.path, new.filename, new.country_name, new.city, new.admin1);
END;
`

// Column names of these views are read by the search UI and must not change.
const viewSchema = `
DROP VIEW IF EXISTS v_cameras;
DROP VIEW IF EXISTS v_cities;
DROP VIEW IF EXISTS v_countries;
DROP VIEW IF EXISTS v_search;

CREATE VIEW v_search AS
SELECT
	path,
	filename,
	ext,
	media_type,
	size_bytes,
	mtime,
	created_utc,
	taken_utc,
	country_name AS country,
	city,
	admin1,
	admin2,
	country_code,
	lat,
	lon,
	year,
	camera_make,
	camera_model,
	CASE
		WHEN camera_model IS NULL THEN camera_make
		WHEN camera_make IS NULL THEN camera_model
		WHEN substr(lower(camera_model), 1, length(camera_make)) = lower(camera_make) THEN camera_model
		ELSE camera_make || ' ' || camera_model
	END AS camera
FROM media;

CREATE VIEW v_countries AS
SELECT country_name AS country, COUNT(*) AS count
FROM media
WHERE country_name IS NOT NULL
GROUP BY country_name
ORDER BY country_name;

CREATE VIEW v_cities AS
SELECT country_name AS country, city, COUNT(*) AS count
FROM media
WHERE city IS NOT NULL
GROUP BY country_name, city
ORDER BY country_name, city;

CREATE VIEW v_cameras AS
SELECT camera, COUNT(*) AS count
FROM v_search
WHERE camera IS NOT NULL
GROUP BY camera
ORDER BY camera;
`

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	if _, err = d.db.ExecContext(ctx, metadataSchema); err != nil {
		return err
	}

	// First-generation databases must be converted before the new schema
	// is created, since they share table and index names.
	if err = d.migrateLegacy(ctx); err != nil {
		return err
	}

	var hadFTS bool
	if hadFTS, err = d.tableExists(ctx, "media_fts"); err != nil {
		return err
	}

	if _, err = d.db.ExecContext(ctx, mediaSchema); err != nil {
		return err
	}

	if err = d.runMigrations(ctx); err != nil {
		return err
	}

	// A media table that predates the shadow table has no shadow rows yet.
	if !hadFTS {
		if err = d.RebuildFTS(ctx); err != nil {
			return fmt.Errorf("failed to populate search index: %w", err)
		}
	}

	if _, err = d.db.ExecContext(ctx, viewSchema); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}

	err = d.SetMetadata(ctx, "schema_version", schemaVersion)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndBatch, not a context: a batch
	// that has started is never cancelled halfway.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back when err is non-nil.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

const upsertMediaQuery = `
INSERT INTO media (
	path, filename, ext, media_type, size_bytes, mtime,
	created_utc, taken_utc, year,
	lat, lon,
	country_code, country_name, city, admin1, admin2,
	camera_make, camera_model, indexed_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
ON CONFLICT(path) DO UPDATE SET
	filename = excluded.filename,
	ext = excluded.ext,
	media_type = excluded.media_type,
	size_bytes = excluded.size_bytes,
	mtime = excluded.mtime,
	created_utc = excluded.created_utc,
	taken_utc = excluded.taken_utc,
	year = excluded.year,
	lat = excluded.lat,
	lon = excluded.lon,
	country_code = excluded.country_code,
	country_name = excluded.country_name,
	city = excluded.city,
	admin1 = excluded.admin1,
	admin2 = excluded.admin2,
	camera_make = excluded.camera_make,
	camera_model = excluded.camera_model,
	indexed_at = excluded.indexed_at
`

// UpsertMedia inserts rec, or overwrites every non-key field of the existing
// row with the same path. The shadow row follows through the triggers.
func (d *Database) UpsertMedia(tx *sql.Tx, rec *MediaRecord) error {
	// The transaction controls the operation's lifecycle.
	_, err := tx.ExecContext(context.Background(), upsertMediaQuery,
		rec.Path,
		rec.Filename,
		rec.Ext,
		rec.MediaType,
		rec.SizeBytes,
		rec.ModTime,
		rec.CreatedUTC,
		rec.TakenUTC,
		rec.Year,
		rec.Lat,
		rec.Lon,
		rec.CountryCode,
		rec.CountryName,
		rec.City,
		rec.Admin1,
		rec.Admin2,
		rec.CameraMake,
		rec.CameraModel,
	)
	return err
}

// DeleteMedia removes the row for path, if any, and reports how many rows
// were removed.
func (d *Database) DeleteMedia(tx *sql.Tx, path string) (int64, error) {
	result, err := tx.ExecContext(context.Background(), "DELETE FROM media WHERE path = ?", path)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpsertBatch writes recs in a single transaction. Any failure rolls back
// the whole batch.
func (d *Database) UpsertBatch(ctx context.Context, recs []MediaRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_batch", start, err) }()

	if len(recs) == 0 {
		return nil
	}

	tx, err := d.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}

	var opErr error
	for i := range recs {
		if opErr = d.UpsertMedia(tx, &recs[i]); opErr != nil {
			opErr = fmt.Errorf("failed to upsert %s: %w", recs[i].Path, opErr)
			break
		}
	}

	if err = d.EndBatch(tx, opErr); err != nil {
		return err
	}

	metrics.DBRowsAffected.WithLabelValues("upsert_batch").Observe(float64(len(recs)))
	logging.Debug("Committed batch of %d records", len(recs))
	return nil
}

// DeletePaths removes the rows for paths in a single transaction and
// returns the number of rows removed.
func (d *Database) DeletePaths(ctx context.Context, paths []string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_paths", start, err) }()

	if len(paths) == 0 {
		return 0, nil
	}

	tx, err := d.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete: %w", err)
	}

	var deleted int64
	var opErr error
	for _, p := range paths {
		n, delErr := d.DeleteMedia(tx, p)
		if delErr != nil {
			opErr = fmt.Errorf("failed to delete %s: %w", p, delErr)
			break
		}
		deleted += n
	}

	if err = d.EndBatch(tx, opErr); err != nil {
		return 0, err
	}

	if deleted > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_paths").Observe(float64(deleted))
	}
	return deleted, nil
}

// LoadSignatures returns the (size, mtime) signature of every indexed path.
func (d *Database) LoadSignatures(ctx context.Context) (map[string]Signature, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_signatures", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, "SELECT path, size_bytes, mtime FROM media")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sigs := make(map[string]Signature)
	for rows.Next() {
		var path string
		var sig Signature
		if err = rows.Scan(&path, &sig.Size, &sig.ModTime); err != nil {
			return nil, err
		}
		sigs[path] = sig
	}
	err = rows.Err()
	return sigs, err
}

// ListPaths returns every indexed path in lexical order.
func (d *Database) ListPaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, "SELECT path FROM media ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	return paths, err
}

// GetMedia returns the record stored for path, or sql.ErrNoRows.
func (d *Database) GetMedia(ctx context.Context, path string) (*MediaRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec MediaRecord
	err := d.db.QueryRowContext(ctx, `
		SELECT path, filename, ext, media_type, size_bytes, mtime,
			created_utc, taken_utc, year, lat, lon,
			country_code, country_name, city, admin1, admin2,
			camera_make, camera_model
		FROM media WHERE path = ?
	`, path).Scan(
		&rec.Path, &rec.Filename, &rec.Ext, &rec.MediaType, &rec.SizeBytes, &rec.ModTime,
		&rec.CreatedUTC, &rec.TakenUTC, &rec.Year, &rec.Lat, &rec.Lon,
		&rec.CountryCode, &rec.CountryName, &rec.City, &rec.Admin1, &rec.Admin2,
		&rec.CameraMake, &rec.CameraModel,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountMedia returns the number of rows in media.
func (d *Database) CountMedia(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM media")
}

// CountFTS returns the number of rows in the full-text shadow table.
func (d *Database) CountFTS(ctx context.Context) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM media_fts")
}

func (d *Database) count(ctx context.Context, query string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

// CheckFTSIntegrity runs the FTS5 integrity check and compares the shadow
// table against media row by row.
func (d *Database) CheckFTSIntegrity(ctx context.Context) (FTSIntegrity, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("integrity_check", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var res FTSIntegrity

	if _, err = d.db.ExecContext(ctx, "INSERT INTO media_fts(media_fts) VALUES('integrity-check')"); err != nil {
		return res, fmt.Errorf("fts integrity check failed: %w", err)
	}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM media", &res.MediaRows},
		{"SELECT COUNT(*) FROM media_fts", &res.FTSRows},
		{"SELECT COUNT(*) FROM media m WHERE NOT EXISTS (SELECT 1 FROM media_fts f WHERE f.rowid = m.id)", &res.Missing},
		{"SELECT COUNT(*) FROM media_fts f WHERE NOT EXISTS (SELECT 1 FROM media m WHERE m.id = f.rowid)", &res.Orphaned},
	}

	for _, q := range queries {
		if err = d.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return res, err
		}
	}

	return res, nil
}

// RebuildFTS regenerates every shadow row from media in one transaction.
func (d *Database) RebuildFTS(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rebuild_fts", start, err) }()

	tx, err := d.BeginBatch()
	if err != nil {
		return err
	}

	_, opErr := tx.ExecContext(ctx, `
		DELETE FROM media_fts;
		INSERT INTO media_fts(rowid, path, filename, country_name, city, admin1)
		SELECT id, path, filename, country_name, city, admin1 FROM media;
	`)
	err = d.EndBatch(tx, opErr)
	return err
}

// CalculateStats counts the indexed records.
func (d *Database) CalculateStats(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats IndexStats

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM media", &stats.TotalMedia},
		{"SELECT COUNT(*) FROM media WHERE media_type = 'image'", &stats.TotalImages},
		{"SELECT COUNT(*) FROM media WHERE media_type = 'video'", &stats.TotalVideos},
		{"SELECT COUNT(*) FROM media WHERE lat IS NOT NULL", &stats.WithLocation},
		{"SELECT COUNT(*) FROM media WHERE taken_utc IS NOT NULL", &stats.WithTakenTime},
		{"SELECT COUNT(DISTINCT country_code) FROM media", &stats.Countries},
		{"SELECT COUNT(*) FROM media_fts", &stats.FTSRows},
	}

	for _, q := range queries {
		if err = d.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnoseDatabasePermissions logs the state of the database directory and
// files, repairing read-only WAL/SHM files left behind by another user.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	if info, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", info.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		p := dbPath + suffix
		info, err := os.Stat(p)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode %v), this will cause write failures", p, info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
