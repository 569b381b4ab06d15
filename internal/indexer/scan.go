package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"media-index/internal/database"
	"media-index/internal/filesystem"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
)

// FileEntry is one media file found by the scanner.
type FileEntry struct {
	Path    string // absolute
	Name    string
	Ext     string // lowercase, no dot
	Size    int64
	ModTime int64 // unix seconds
}

// Signature returns the change-detection key for e.
func (e FileEntry) Signature() database.Signature {
	return database.Signature{Size: e.Size, ModTime: e.ModTime}
}

// ScanOptions controls which files Scan reports.
type ScanOptions struct {
	Root       string
	Extensions mediatypes.AllowList
	SkipHidden bool
	Retry      filesystem.RetryConfig
}

// Scan walks opts.Root in lexical order and returns every regular file with
// an allowed extension. Files that vanish between listing and stat are
// skipped silently; other per-entry errors are logged and skipped. Only a
// failure to read the root itself, or ctx cancellation, fails the scan.
func Scan(ctx context.Context, opts ScanOptions) ([]FileEntry, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", opts.Root, err)
	}

	var files []FileEntry
	seen := 0

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if seen++; seen%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if !errors.Is(walkErr, fs.ErrNotExist) {
				logging.Warn("Error accessing path %s: %v", path, walkErr)
			}
			return nil
		}

		name := d.Name()
		if path != root && opts.SkipHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		ext := mediatypes.Ext(name)
		if ext == "" || !opts.Extensions.Allows(ext) {
			return nil
		}

		info, err := filesystem.StatWithRetry(path, opts.Retry)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Warn("Skipping %s: %v", path, err)
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		files = append(files, FileEntry{
			Path:    path,
			Name:    name,
			Ext:     ext,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return files, nil
}
