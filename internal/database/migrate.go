package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"media-index/internal/geocode"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
)

// staleModTime marks a migrated row whose stored fields predate the current
// extraction. It never matches a file's signature, so the next run
// re-extracts the row.
const staleModTime = -1

// columnExists reports whether table has the named column.
func columnExists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, table, column string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&exists)
	return exists, err
}

func (d *Database) tableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&exists)
	return exists, err
}

// migrateLegacy converts a first-generation database, where media was keyed
// by path with no integer id and media_fts was a standalone table written by
// the indexer, into the current layout. Rows are copied across; shadow rows
// are regenerated by the insert trigger.
func (d *Database) migrateLegacy(ctx context.Context) error {
	hasMedia, err := d.tableExists(ctx, "media")
	if err != nil {
		return fmt.Errorf("failed to check for media table: %w", err)
	}
	if !hasMedia {
		return nil
	}

	hasID, err := columnExists(ctx, d.db, "media", "id")
	if err != nil {
		return fmt.Errorf("failed to check for id column: %w", err)
	}
	if hasID {
		return nil
	}

	start := time.Now()
	defer func() { recordQuery("migrate", start, err) }()

	logging.Info("Migrating database: converting first-generation media table")

	tx, err := d.BeginBatch()
	if err != nil {
		return err
	}

	opErr := migrateLegacyTx(ctx, tx)
	if err = d.EndBatch(tx, opErr); err != nil {
		return fmt.Errorf("legacy migration failed: %w", err)
	}

	logging.Info("Migration complete: first-generation media table converted")
	return nil
}

func migrateLegacyTx(ctx context.Context, tx *sql.Tx) error {
	// Views and indexes reference media by name and must go before the rename.
	prelude := `
		DROP VIEW IF EXISTS v_search;
		DROP INDEX IF EXISTS idx_taken_utc;
		DROP INDEX IF EXISTS idx_country_code;
		DROP INDEX IF EXISTS idx_year;
		DROP INDEX IF EXISTS idx_latlon;
		DROP TABLE IF EXISTS media_fts;
		ALTER TABLE media RENAME TO media_legacy;
	`
	if _, err := tx.ExecContext(ctx, prelude); err != nil {
		return fmt.Errorf("failed to retire legacy tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx, mediaSchema); err != nil {
		return fmt.Errorf("failed to create media table: %w", err)
	}

	// Legacy rows may predate the constraints; repair what can be repaired
	// and skip rows without a path.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO media (
			path, filename, ext, size_bytes, mtime,
			created_utc, taken_utc, year,
			lat, lon,
			country_code, country_name, city, admin1, admin2
		)
		SELECT
			path,
			COALESCE(filename, ''),
			lower(COALESCE(ext, '')),
			COALESCE(size_bytes, 0),
			?,
			COALESCE(created_utc, strftime('%Y-%m-%dT%H:%M:%S', COALESCE(mtime, 0), 'unixepoch')),
			taken_utc,
			COALESCE(year, CAST(strftime('%Y', COALESCE(mtime, 0), 'unixepoch') AS INTEGER)),
			CASE WHEN lat IS NULL OR lon IS NULL THEN NULL ELSE lat END,
			CASE WHEN lat IS NULL OR lon IS NULL THEN NULL ELSE lon END,
			country_code, country_name, city, admin1, admin2
		FROM media_legacy
		WHERE path IS NOT NULL AND path <> ''
	`, staleModTime)
	if err != nil {
		return fmt.Errorf("failed to copy legacy rows: %w", err)
	}
	copied, _ := result.RowsAffected()

	if err := backfillMediaType(ctx, tx); err != nil {
		return err
	}
	if err := normalizeCountryNames(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE media_legacy"); err != nil {
		return fmt.Errorf("failed to drop legacy table: %w", err)
	}

	logging.Info("Copied %d rows from legacy media table", copied)
	return nil
}

// backfillMediaType classifies rows by extension.
func backfillMediaType(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT ext FROM media")
	if err != nil {
		return fmt.Errorf("failed to list extensions: %w", err)
	}
	var exts []string
	for rows.Next() {
		var ext string
		if err := rows.Scan(&ext); err != nil {
			rows.Close()
			return err
		}
		exts = append(exts, ext)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ext := range exts {
		ft := mediatypes.GetFileType(strings.ToLower(ext))
		if _, err := tx.ExecContext(ctx,
			"UPDATE media SET media_type = ? WHERE ext = ? AND media_type <> ?", string(ft), ext, string(ft),
		); err != nil {
			return fmt.Errorf("failed to classify %q files: %w", ext, err)
		}
	}
	return nil
}

// normalizeCountryNames replaces the bare country codes the first-generation
// indexer stored as names with their display names, so a country is listed
// once until its rows are re-extracted.
func normalizeCountryNames(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT country_code FROM media WHERE country_code IS NOT NULL")
	if err != nil {
		return fmt.Errorf("failed to list country codes: %w", err)
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return err
		}
		codes = append(codes, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, code := range codes {
		canonical := strings.ToUpper(strings.TrimSpace(code))
		name := geocode.CountryName(canonical, "")
		if name == canonical {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE media SET country_code = ?, country_name = ?
			WHERE country_code = ? AND (country_name IS NULL OR upper(trim(country_name)) = ?)
		`, canonical, name, code, canonical); err != nil {
			return fmt.Errorf("failed to rename country %q: %w", code, err)
		}
	}
	return nil
}

// runMigrations adds columns introduced after the id-keyed layout.
func (d *Database) runMigrations(ctx context.Context) error {
	added := []struct {
		column string
		ddl    string
	}{
		{"camera_make", "ALTER TABLE media ADD COLUMN camera_make TEXT"},
		{"camera_model", "ALTER TABLE media ADD COLUMN camera_model TEXT"},
		{"media_type", "ALTER TABLE media ADD COLUMN media_type TEXT NOT NULL DEFAULT 'other'"},
		{"indexed_at", "ALTER TABLE media ADD COLUMN indexed_at INTEGER NOT NULL DEFAULT 0"},
	}

	backfill, stale := false, false
	for _, m := range added {
		exists, err := columnExists(ctx, d.db, "media", m.column)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", m.column, err)
		}
		if exists {
			continue
		}

		logging.Info("Migrating database: adding %s column to media table", m.column)
		if _, err := d.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", m.column, err)
		}
		switch m.column {
		case "media_type":
			backfill = true
		case "camera_make", "camera_model":
			stale = true
		}
	}

	if !backfill && !stale {
		return nil
	}

	tx, err := d.BeginBatch()
	if err != nil {
		return err
	}
	return d.EndBatch(tx, func() error {
		if backfill {
			if err := backfillMediaType(ctx, tx); err != nil {
				return err
			}
		}
		if stale {
			// Existing rows were indexed without camera fields.
			if _, err := tx.ExecContext(ctx, "UPDATE media SET mtime = ?", staleModTime); err != nil {
				return fmt.Errorf("failed to mark rows for re-extraction: %w", err)
			}
		}
		return nil
	}())
}
