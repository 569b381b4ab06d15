package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"media-index/internal/database"
	"media-index/internal/extractor"
	"media-index/internal/geocode"
)

// writeFile creates root/rel with content and the given modification time.
func writeFile(t *testing.T, root, rel, content string, mtime time.Time) string {
	t.Helper()

	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func setupTestDB(t *testing.T) (*database.Database, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	db, err := database.New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

// fakeExtractor returns canned metadata and records every batch it sees.
type fakeExtractor struct {
	mu    sync.Mutex
	meta  map[string]extractor.Metadata
	err   error
	calls [][]string

	// onExtract runs before each call with the 1-based call number.
	onExtract func(call int)
}

func (f *fakeExtractor) Extract(_ context.Context, paths []string) (map[string]extractor.Metadata, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	call := len(f.calls)
	hook := f.onExtract
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if f.err != nil {
		return nil, f.err
	}

	out := make(map[string]extractor.Metadata)
	for _, p := range paths {
		if m, ok := f.meta[p]; ok {
			out[p] = m
		}
	}
	return out, nil
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeResolver resolves every valid coordinate to loc.
type fakeResolver struct {
	loc   geocode.Location
	calls int
}

func (f *fakeResolver) Resolve(lat, lon float64) geocode.Location {
	f.calls++
	if !geocode.ValidCoordinate(lat, lon) {
		return geocode.Location{}
	}
	return f.loc
}

var paris = geocode.Location{CountryCode: "FR", CountryName: "France", City: "Paris", Admin1: "Île-de-France"}
