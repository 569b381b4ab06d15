package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"media-index/internal/database"
	"media-index/internal/extractor"
	"media-index/internal/filesystem"
	"media-index/internal/geocode"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"
)

// DefaultBatchSize is the number of files handed to the extractor at once.
const DefaultBatchSize = 2000

// ErrAlreadyRunning is returned by Run when another run is in progress.
var ErrAlreadyRunning = errors.New("index run already in progress")

// Phase is a state of the reconciliation run.
type Phase string

const (
	PhaseIdle        Phase = ""
	PhaseScanning    Phase = "scanning"
	PhaseBatching    Phase = "batching"
	PhaseExtracting  Phase = "extracting"
	PhaseNormalizing Phase = "normalizing"
	PhaseCommitting  Phase = "committing"
	PhasePruning     Phase = "pruning"
	PhaseDone        Phase = "done"
)

// Config controls a reconciliation run.
type Config struct {
	Root       string
	BatchSize  int
	Extensions []string
	SkipHidden bool

	// Prune removes rows whose file no longer exists.
	Prune bool
	// SkipPruneWhenScanEmpty refuses to prune a non-empty index when the
	// scan found nothing, which usually means the root is not mounted.
	SkipPruneWhenScanEmpty bool
	// VacuumAfterPrune compacts the database after a prune removed rows.
	VacuumAfterPrune bool
}

// Result summarizes a run.
type Result struct {
	Scanned                int           `json:"scanned"`
	Unchanged              int           `json:"unchanged"`
	ToProcess              int           `json:"toProcess"`
	Indexed                int           `json:"indexed"`
	Pruned                 int           `json:"pruned"`
	Batches                int           `json:"batches"`
	BatchesWithoutMetadata int           `json:"batchesWithoutMetadata"`
	GeocodeFailures        int           `json:"geocodeFailures"`
	PruneSkipped           bool          `json:"pruneSkipped,omitempty"`
	Interrupted            bool          `json:"interrupted,omitempty"`
	Duration               time.Duration `json:"duration"`
}

// Progress is a point-in-time view of the current run, safe to read from
// other goroutines.
type Progress struct {
	Running      bool      `json:"running"`
	Phase        Phase     `json:"phase"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	Scanned      int64     `json:"scanned"`
	ToProcess    int64     `json:"toProcess"`
	Indexed      int64     `json:"indexed"`
	Pruned       int64     `json:"pruned"`
	BatchesDone  int64     `json:"batchesDone"`
	BatchesTotal int64     `json:"batchesTotal"`
}

// Reporter receives run events, typically to print console progress.
type Reporter interface {
	PhaseChanged(phase Phase)
	FilesToProcess(n int)
	BatchCommitted(batch, total, indexed int)
	Finished(res Result)
}

type nopReporter struct{}

func (nopReporter) PhaseChanged(Phase)           {}
func (nopReporter) FilesToProcess(int)           {}
func (nopReporter) BatchCommitted(int, int, int) {}
func (nopReporter) Finished(Result)              {}

// Indexer reconciles the index with the filesystem.
type Indexer struct {
	db        *database.Database
	extractor extractor.MetadataExtractor
	geo       geocode.GeoResolver
	cfg       Config
	allow     mediatypes.AllowList
	retry     filesystem.RetryConfig
	reporter  Reporter

	runMu   sync.Mutex
	running bool

	// Progress tracking
	phase        atomic.Value // Phase
	startedAt    atomic.Value // time.Time
	scanned      atomic.Int64
	toProcess    atomic.Int64
	indexed      atomic.Int64
	pruned       atomic.Int64
	batchesDone  atomic.Int64
	batchesTotal atomic.Int64
}

// New creates an Indexer. A nil geo disables place resolution.
func New(db *database.Database, ext extractor.MetadataExtractor, geo geocode.GeoResolver, cfg Config) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = mediatypes.DefaultExtensions
	}
	if geo == nil {
		geo = geocode.Disabled{}
	}

	idx := &Indexer{
		db:        db,
		extractor: ext,
		geo:       geo,
		cfg:       cfg,
		allow:     mediatypes.NewAllowList(cfg.Extensions),
		retry:     filesystem.DefaultRetryConfig(),
		reporter:  nopReporter{},
	}
	idx.phase.Store(PhaseIdle)
	idx.startedAt.Store(time.Time{})
	return idx
}

// SetReporter installs r to receive run events.
func (idx *Indexer) SetReporter(r Reporter) {
	if r == nil {
		r = nopReporter{}
	}
	idx.reporter = r
}

// Progress returns the current run progress.
func (idx *Indexer) Progress() Progress {
	idx.runMu.Lock()
	running := idx.running
	idx.runMu.Unlock()

	phase, _ := idx.phase.Load().(Phase)
	started, _ := idx.startedAt.Load().(time.Time)

	return Progress{
		Running:      running,
		Phase:        phase,
		StartedAt:    started,
		Scanned:      idx.scanned.Load(),
		ToProcess:    idx.toProcess.Load(),
		Indexed:      idx.indexed.Load(),
		Pruned:       idx.pruned.Load(),
		BatchesDone:  idx.batchesDone.Load(),
		BatchesTotal: idx.batchesTotal.Load(),
	}
}

// Run performs one reconciliation: scan, extract and commit changed files in
// batches, then prune rows for files that are gone.
//
// Cancelling ctx stops the run at the next batch boundary; the current batch
// always completes and pruning is skipped. An interrupted run returns an
// error wrapping ctx.Err().
func (idx *Indexer) Run(ctx context.Context) (Result, error) {
	if !idx.tryStart() {
		return Result{}, ErrAlreadyRunning
	}
	defer idx.finish()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	start := time.Now()
	idx.resetProgress(start)
	logging.Info("Starting index run of %s", idx.cfg.Root)

	res, err := idx.run(ctx)
	res.Duration = time.Since(start)

	if err != nil {
		metrics.IndexerErrors.Inc()
		if res.Interrupted {
			idx.recordRun(res)
		}
		return res, err
	}

	idx.setPhase(PhaseDone)
	idx.recordRun(res)
	idx.refreshStats(ctx)

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(res.Duration.Seconds())

	logging.Info("Index complete: %d scanned, %d unchanged, %d indexed, %d pruned in %v",
		res.Scanned, res.Unchanged, res.Indexed, res.Pruned, res.Duration.Round(time.Millisecond))
	idx.reporter.Finished(res)

	return res, nil
}

func (idx *Indexer) run(ctx context.Context) (Result, error) {
	var res Result

	// SCANNING
	idx.setPhase(PhaseScanning)
	files, err := Scan(ctx, ScanOptions{
		Root:       idx.cfg.Root,
		Extensions: idx.allow,
		SkipHidden: idx.cfg.SkipHidden,
		Retry:      idx.retry,
	})
	if err != nil {
		if ctx.Err() != nil {
			return idx.interrupted(ctx, res)
		}
		return res, err
	}
	res.Scanned = len(files)
	idx.scanned.Store(int64(len(files)))
	metrics.IndexerFilesScanned.Add(float64(len(files)))

	indexed, err := idx.db.LoadSignatures(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load signatures: %w", err)
	}

	changed, unchanged := DetectChanges(indexed, files)
	res.Unchanged = unchanged
	res.ToProcess = len(changed)
	idx.toProcess.Store(int64(len(changed)))
	metrics.IndexerFilesUnchanged.Add(float64(unchanged))

	logging.Info("Files to process: %d (%d unchanged)", len(changed), unchanged)
	idx.reporter.FilesToProcess(len(changed))

	// BATCHING
	idx.setPhase(PhaseBatching)
	batches := splitBatches(changed, idx.cfg.BatchSize)
	idx.batchesTotal.Store(int64(len(batches)))

	for i, batch := range batches {
		if ctx.Err() != nil {
			return idx.interrupted(ctx, res)
		}

		if err := idx.processBatch(ctx, i+1, len(batches), batch, &res); err != nil {
			return res, err
		}
	}

	if ctx.Err() != nil {
		return idx.interrupted(ctx, res)
	}

	// PRUNING
	if !idx.cfg.Prune {
		logging.Debug("Pruning disabled")
		return res, nil
	}

	if len(files) == 0 && len(indexed) > 0 && idx.cfg.SkipPruneWhenScanEmpty {
		logging.Warn("Scan of %s found no files but the index holds %d; skipping prune (is the root mounted?)",
			idx.cfg.Root, len(indexed))
		res.PruneSkipped = true
		return res, nil
	}

	idx.setPhase(PhasePruning)
	pruned, err := idx.prune(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return idx.interrupted(ctx, res)
		}
		return res, err
	}
	res.Pruned = pruned

	if pruned > 0 && idx.cfg.VacuumAfterPrune {
		if err := idx.db.Vacuum(ctx); err != nil {
			logging.Warn("Failed to vacuum database after prune: %v", err)
		}
	}

	return res, nil
}

func (idx *Indexer) interrupted(ctx context.Context, res Result) (Result, error) {
	res.Interrupted = true
	logging.Warn("Index run interrupted after %d of %d batches; pruning skipped", res.Batches, idx.batchesTotal.Load())
	return res, fmt.Errorf("index run interrupted: %w", ctx.Err())
}

// processBatch extracts, normalizes and commits one batch. Extraction and
// geocoding failures degrade records; only a store failure is returned.
func (idx *Indexer) processBatch(ctx context.Context, n, total int, batch []FileEntry, res *Result) error {
	start := time.Now()
	defer func() { metrics.IndexerBatchDuration.Observe(time.Since(start).Seconds()) }()

	logging.Debug("Processing batch %d/%d (%d files)", n, total, len(batch))

	// EXTRACTING
	idx.setPhase(PhaseExtracting)
	paths := make([]string, len(batch))
	for i, f := range batch {
		paths[i] = f.Path
	}

	meta, err := idx.extractor.Extract(ctx, paths)
	if err != nil {
		logging.Warn("Metadata extraction failed for batch %d/%d (%d files), indexing without metadata: %v",
			n, total, len(batch), err)
		res.BatchesWithoutMetadata++
		meta = nil
	}

	// NORMALIZING
	idx.setPhase(PhaseNormalizing)
	recs := make([]database.MediaRecord, 0, len(batch))
	for _, f := range batch {
		var mp *extractor.Metadata
		if m, ok := meta[f.Path]; ok {
			mp = &m
		}

		var loc geocode.Location
		if lat, lon, ok := coordinates(mp); ok {
			loc = idx.geo.Resolve(lat, lon)
			if loc.IsZero() {
				res.GeocodeFailures++
			}
		}

		recs = append(recs, Normalize(f, mp, loc))
	}

	// COMMITTING
	idx.setPhase(PhaseCommitting)
	if err := idx.db.UpsertBatch(ctx, recs); err != nil {
		return fmt.Errorf("failed to commit batch %d/%d: %w", n, total, err)
	}

	res.Batches++
	res.Indexed += len(recs)
	idx.indexed.Add(int64(len(recs)))
	idx.batchesDone.Add(1)
	metrics.IndexerFilesIndexed.Add(float64(len(recs)))

	idx.reporter.BatchCommitted(n, total, res.Indexed)
	return nil
}

// prune deletes rows whose file is confirmed gone. Rows whose stat fails
// for any other reason are kept.
func (idx *Indexer) prune(ctx context.Context) (int, error) {
	paths, err := idx.db.ListPaths(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed paths: %w", err)
	}

	var gone []string
	for _, p := range paths {
		_, err := filesystem.StatWithRetry(p, idx.retry)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
			gone = append(gone, p)
		default:
			logging.Warn("Keeping %s in index: %v", p, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted, err := idx.db.DeletePaths(ctx, gone)
	if err != nil {
		return 0, fmt.Errorf("failed to prune %d missing files: %w", len(gone), err)
	}

	if deleted > 0 {
		logging.Info("Removed %d missing files from index", deleted)
	}
	idx.pruned.Store(deleted)
	metrics.IndexerFilesPruned.Add(float64(deleted))
	return int(deleted), nil
}

// recordRun persists the run summary. Failure to record is logged only.
func (idx *Indexer) recordRun(res Result) {
	summary := database.RunSummary{
		CompletedAt:            time.Now().UTC(),
		Duration:               res.Duration.Round(time.Millisecond).String(),
		Scanned:                res.Scanned,
		Unchanged:              res.Unchanged,
		ToProcess:              res.ToProcess,
		Indexed:                res.Indexed,
		Pruned:                 res.Pruned,
		Batches:                res.Batches,
		BatchesWithoutMetadata: res.BatchesWithoutMetadata,
		GeocodeFailures:        res.GeocodeFailures,
		Interrupted:            res.Interrupted,
	}

	// Recorded even for an interrupted run, so not bound to its context.
	if err := idx.db.SetLastRun(context.Background(), summary); err != nil {
		logging.Warn("Failed to record last run: %v", err)
	}
}

// refreshStats updates the library gauges and repairs the search index if
// it has drifted from the media table.
func (idx *Indexer) refreshStats(ctx context.Context) {
	stats, err := idx.db.CalculateStats(ctx)
	if err != nil {
		logging.Warn("Failed to calculate index stats: %v", err)
		return
	}

	metrics.MediaRecords.WithLabelValues(string(mediatypes.FileTypeImage)).Set(float64(stats.TotalImages))
	metrics.MediaRecords.WithLabelValues(string(mediatypes.FileTypeVideo)).Set(float64(stats.TotalVideos))
	metrics.MediaRecords.WithLabelValues(string(mediatypes.FileTypeOther)).
		Set(float64(stats.TotalMedia - stats.TotalImages - stats.TotalVideos))
	metrics.MediaRecordsWithLocation.Set(float64(stats.WithLocation))
	metrics.MediaFTSRows.Set(float64(stats.FTSRows))

	if stats.FTSRows != stats.TotalMedia {
		logging.Error("Search index has %d rows for %d media records, rebuilding", stats.FTSRows, stats.TotalMedia)
		if err := idx.db.RebuildFTS(ctx); err != nil {
			logging.Error("Failed to rebuild search index: %v", err)
		}
	}
}

func splitBatches(files []FileEntry, size int) [][]FileEntry {
	var batches [][]FileEntry
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		batches = append(batches, files[start:end])
	}
	return batches
}

func (idx *Indexer) setPhase(p Phase) {
	idx.phase.Store(p)
	metrics.SetPhase(string(p))
	logging.Debug("Index phase: %s", p)
	idx.reporter.PhaseChanged(p)
}

func (idx *Indexer) tryStart() bool {
	idx.runMu.Lock()
	defer idx.runMu.Unlock()

	if idx.running {
		return false
	}
	idx.running = true
	return true
}

func (idx *Indexer) finish() {
	idx.runMu.Lock()
	idx.running = false
	idx.runMu.Unlock()
}

func (idx *Indexer) resetProgress(start time.Time) {
	idx.startedAt.Store(start)
	idx.scanned.Store(0)
	idx.toProcess.Store(0)
	idx.indexed.Store(0)
	idx.pruned.Store(0)
	idx.batchesDone.Store(0)
	idx.batchesTotal.Store(0)
}
