package indexer

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-index/internal/filesystem"
	"media-index/internal/mediatypes"
)

func scanOptions(root string) ScanOptions {
	return ScanOptions{
		Root:       root,
		Extensions: mediatypes.NewAllowList(mediatypes.DefaultExtensions),
		SkipHidden: true,
		Retry:      filesystem.DefaultRetryConfig(),
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	mtime := time.Date(2022, 8, 9, 10, 11, 12, 0, time.UTC)

	structure := map[string]string{
		"2022/beach.jpg":          "jpeg",
		"2022/Sunset.JPG":         "upper",
		"2022/clip.mp4":           "video",
		"docs/readme.txt":         "not media",
		"noext":                   "no extension",
		".hidden/secret.jpg":      "hidden dir",
		"2022/.thumb.jpg":         "hidden file",
		"deeply/nested/dir/x.png": "nested",
	}
	for rel, content := range structure {
		writeFile(t, root, rel, content, mtime)
	}

	files, err := Scan(context.Background(), scanOptions(root))
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		rels = append(rels, rel)
		assert.True(t, filepath.IsAbs(f.Path))
		assert.Equal(t, mtime.Unix(), f.ModTime)
	}

	// Lexical walk order
	assert.Equal(t, []string{
		"2022/Sunset.JPG",
		"2022/beach.jpg",
		"2022/clip.mp4",
		"deeply/nested/dir/x.png",
	}, rels)

	assert.Equal(t, "jpg", files[0].Ext)
	assert.Equal(t, "Sunset.JPG", files[0].Name)
	assert.Equal(t, int64(len("upper")), files[0].Size)
}

func TestScanIncludesHiddenWhenAllowed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hidden/secret.jpg", "x", time.Now())
	writeFile(t, root, "visible.jpg", "x", time.Now())

	opts := scanOptions(root)
	opts.SkipHidden = false

	files, err := Scan(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestScanCustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", "x", time.Now())
	writeFile(t, root, "b.dng", "x", time.Now())

	opts := scanOptions(root)
	opts.Extensions = mediatypes.NewAllowList([]string{".DNG"})

	files, err := Scan(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.dng", files[0].Name)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := Scan(context.Background(), scanOptions(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestScanEmptyRoot(t *testing.T) {
	files, err := Scan(context.Background(), scanOptions(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, files)
}
