package indexer

import "media-index/internal/database"

// DetectChanges returns the files that need extraction, in discovery order,
// and the number that can be skipped. A file needs extraction when its path
// is not indexed or its (size, mtime) signature differs from the stored one.
func DetectChanges(indexed map[string]database.Signature, files []FileEntry) (changed []FileEntry, unchanged int) {
	for _, f := range files {
		if sig, ok := indexed[f.Path]; ok && sig == f.Signature() {
			unchanged++
			continue
		}
		changed = append(changed, f)
	}
	return changed, unchanged
}
