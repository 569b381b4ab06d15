package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB creates a fresh index in a temporary directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "media.db")

	db, err := New(context.Background(), dbPath)
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// sampleRecord returns a minimal valid image record for path.
func sampleRecord(path string) MediaRecord {
	return MediaRecord{
		Path:       path,
		Filename:   filepath.Base(path),
		Ext:        "jpg",
		MediaType:  "image",
		SizeBytes:  1024,
		ModTime:    1685614500,
		CreatedUTC: "2023-06-01T10:15:00",
		Year:       2023,
	}
}

// parisRecord returns a geotagged record resolved to Paris.
func parisRecord(path string) MediaRecord {
	rec := sampleRecord(path)
	rec.TakenUTC = strPtr("2023-06-01T10:15:00")
	rec.Lat = floatPtr(48.8566)
	rec.Lon = floatPtr(2.3522)
	rec.CountryCode = strPtr("FR")
	rec.CountryName = strPtr("France")
	rec.City = strPtr("Paris")
	rec.Admin1 = strPtr("Île-de-France")
	return rec
}
