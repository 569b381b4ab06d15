package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstGenerationSchema is the layout written by the earliest indexer.
const firstGenerationSchema = `
CREATE TABLE media (
	path TEXT PRIMARY KEY,
	filename TEXT,
	ext TEXT,
	size_bytes INTEGER,
	mtime INTEGER,
	created_utc TEXT,
	taken_utc TEXT,
	year INTEGER,
	lat REAL,
	lon REAL,
	country_code TEXT,
	country_name TEXT,
	city TEXT,
	admin1 TEXT,
	admin2 TEXT
);
CREATE VIRTUAL TABLE media_fts USING fts5(path, filename, country_name, city);
CREATE INDEX idx_taken_utc ON media(taken_utc);
CREATE INDEX idx_country_code ON media(country_code);
CREATE INDEX idx_year ON media(year);
CREATE INDEX idx_latlon ON media(lat, lon);
CREATE VIEW v_search AS
SELECT path, filename, ext, size_bytes, mtime, created_utc, taken_utc,
	country_name AS country, city, admin1, admin2, country_code, lat, lon, year
FROM media;
`

func writeRawDB(t *testing.T, schema string, stmts ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "media.db")

	raw, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Exec(schema)
	require.NoError(t, err)
	for _, s := range stmts {
		_, err = raw.Exec(s)
		require.NoError(t, err)
	}
	return dbPath
}

func TestMigrateFirstGeneration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbPath := writeRawDB(t, firstGenerationSchema,
		`INSERT INTO media VALUES ('/media/eiffel.jpg', 'eiffel.jpg', 'jpg', 2048, 1685614500,
			'2023-06-01T10:15:00', '2023-06-01T10:15:00', 2023, 48.8566, 2.3522,
			'FR', 'FR', 'Paris', 'Ile-de-France', 'Paris')`,
		`INSERT INTO media VALUES ('/media/clip.MOV', 'clip.MOV', 'MOV', 4096, 1577836800,
			'2020-01-01T00:00:00', NULL, 2020, NULL, NULL, NULL, NULL, NULL, NULL, NULL)`,
		`INSERT INTO media VALUES ('/media/half.jpg', 'half.jpg', 'jpg', 1, 1577836800,
			NULL, NULL, NULL, 10.0, NULL, NULL, NULL, NULL, NULL, NULL)`,
		`INSERT INTO media VALUES ('/media/unknown.jpg', 'unknown.jpg', 'jpg', 5, 1577836800,
			'2020-01-01T00:00:00', NULL, 2020, 1.0, 1.0, 'zz', 'zz', NULL, NULL, NULL)`,
		`INSERT INTO media_fts VALUES ('/media/eiffel.jpg', 'eiffel.jpg', 'FR', 'Paris')`,
	)

	ctx := context.Background()
	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.CountMedia(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assertFTSInSync(t, db)
	assert.Equal(t, []string{"/media/eiffel.jpg"}, ftsMatches(t, db, "Paris"))
	assert.Equal(t, []string{"/media/eiffel.jpg"}, ftsMatches(t, db, "France"))

	eiffel, err := db.GetMedia(ctx, "/media/eiffel.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image", eiffel.MediaType)
	assert.Equal(t, "FR", *eiffel.CountryCode)
	assert.Equal(t, "France", *eiffel.CountryName)
	assert.Equal(t, int64(2048), eiffel.SizeBytes)
	assert.Equal(t, 2023, eiffel.Year)
	assert.Equal(t, "2023-06-01T10:15:00", eiffel.CreatedUTC)

	// Unknown codes are left as stored.
	unknown, err := db.GetMedia(ctx, "/media/unknown.jpg")
	require.NoError(t, err)
	assert.Equal(t, "zz", *unknown.CountryName)

	// Every migrated row is re-extracted on the next run.
	sigs, err := db.LoadSignatures(ctx)
	require.NoError(t, err)
	require.Len(t, sigs, 4)
	for path, sig := range sigs {
		assert.Equal(t, int64(staleModTime), sig.ModTime, path)
	}
	assert.NotEqual(t, Signature{Size: 2048, ModTime: 1685614500}, sigs["/media/eiffel.jpg"])

	clip, err := db.GetMedia(ctx, "/media/clip.MOV")
	require.NoError(t, err)
	assert.Equal(t, "mov", clip.Ext)
	assert.Equal(t, "video", clip.MediaType)

	// Rows that violate the current constraints are repaired on the way in.
	half, err := db.GetMedia(ctx, "/media/half.jpg")
	require.NoError(t, err)
	assert.Nil(t, half.Lat)
	assert.Nil(t, half.Lon)
	assert.Equal(t, 2020, half.Year)
	assert.Equal(t, "2020-01-01T00:00:00", half.CreatedUTC)

	legacy, err := db.tableExists(ctx, "media_legacy")
	require.NoError(t, err)
	assert.False(t, legacy)

	var oldIndexes int
	require.NoError(t, db.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name IN ('idx_taken_utc', 'idx_year')",
	).Scan(&oldIndexes))
	assert.Zero(t, oldIndexes)

	var camera sql.NullString
	require.NoError(t, db.db.QueryRow("SELECT camera FROM v_search WHERE path = '/media/eiffel.jpg'").Scan(&camera))
	assert.False(t, camera.Valid)

	// New rows get fresh ids after the copied ones, and a freshly indexed
	// French photo joins the migrated one under a single country.
	require.NoError(t, db.UpsertBatch(ctx, []MediaRecord{parisRecord("/media/new.jpg")}))
	assertFTSInSync(t, db)

	var count int
	require.NoError(t, db.db.QueryRow("SELECT count FROM v_countries WHERE country = 'France'").Scan(&count))
	assert.Equal(t, 2, count)
	var codeNamed int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM v_countries WHERE country = 'FR'").Scan(&codeNamed))
	assert.Zero(t, codeNamed)
}

func TestMigrateAddsMissingColumns(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbPath := writeRawDB(t, `
		CREATE TABLE media (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			ext TEXT NOT NULL,
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
			admin2 TEXT
		);`,
		`INSERT INTO media (path, filename, ext, size_bytes, mtime, created_utc, year, city)
			VALUES ('/media/v.mp4', 'v.mp4', 'mp4', 10, 1577836800, '2020-01-01T00:00:00', 2020, 'Paris')`,
	)

	ctx := context.Background()
	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, col := range []string{"camera_make", "camera_model", "media_type", "indexed_at"} {
		exists, err := columnExists(ctx, db.db, "media", col)
		require.NoError(t, err)
		assert.True(t, exists, "column %s not added", col)
	}

	rec, err := db.GetMedia(ctx, "/media/v.mp4")
	require.NoError(t, err)
	assert.Equal(t, "video", rec.MediaType)
	assert.Equal(t, int64(staleModTime), rec.ModTime, "rows indexed without camera fields are re-extracted")

	assertFTSInSync(t, db)
	assert.Equal(t, []string{"/media/v.mp4"}, ftsMatches(t, db, "Paris"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, dbPath := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertBatch(ctx, []MediaRecord{parisRecord("/media/a.jpg")}))
	require.NoError(t, db.Close())

	for i := 0; i < 2; i++ {
		reopened, err := New(ctx, dbPath)
		require.NoError(t, err)

		n, err := reopened.CountMedia(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assertFTSInSync(t, reopened)
		require.NoError(t, reopened.Close())
	}
}
