package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/webp" // register webp decoding

	"asset-index/internal/aseprite"
	"asset-index/internal/assettypes"
	"asset-index/internal/colors"
	"asset-index/internal/database"
	"asset-index/internal/hashing"
	"asset-index/internal/logging"
	"asset-index/internal/metrics"
	"asset-index/internal/phash"
	"asset-index/internal/sprite"
	"asset-index/internal/tags"
	"asset-index/internal/workers"
)

const (
	// Number of files to write before committing a batch
	batchSize = 500

	// Buffer between extraction workers and the single writer
	channelBuffer = 256
)

// ErrAlreadyRunning is returned when a run starts while another is active.
// The catalog supports one writer; overlapping runs over the same tree are
// not meaningful.
var ErrAlreadyRunning = errors.New("indexing run already in progress")

// Indexer scans an asset tree and keeps the catalog in sync with it.
type Indexer struct {
	db        *database.Database
	root      string
	extractor *tags.Extractor
	workers   int
	force     bool

	runMu sync.Mutex
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithForce bypasses the content-hash skip check and reprocesses every file.
func WithForce(force bool) Option {
	return func(idx *Indexer) { idx.force = force }
}

// WithWorkers overrides the extraction worker count.
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithVocabulary replaces the default tag vocabulary.
func WithVocabulary(v tags.Vocabulary) Option {
	return func(idx *Indexer) { idx.extractor = tags.NewExtractor(v) }
}

// New creates an Indexer over the asset tree rooted at root.
func New(db *database.Database, root string, opts ...Option) *Indexer {
	idx := &Indexer{
		db:        db,
		root:      root,
		extractor: tags.NewExtractor(tags.DefaultVocabulary()),
		workers:   workers.ForMixed(0),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Result summarizes one indexing run.
type Result struct {
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration"`
}

// fileRecord carries one file's extraction output from a worker to the
// writer. Workers never touch the database.
type fileRecord struct {
	asset       database.Asset
	packName    string
	packPath    string
	packVersion string
	pathTags    []string
	aseTags     []string
	colors      []colors.Color
	phash       phash.Hash
}

// Run scans the tree once: unchanged files (by content hash) are skipped,
// new and changed files are fully re-extracted and upserted. Extraction
// fans out across a worker pool; all writes funnel through this goroutine in
// batched transactions. Cancelling the context stops the run between files;
// batches already committed remain valid and the next run skips them.
func (idx *Indexer) Run(ctx context.Context) (*Result, error) {
	if !idx.runMu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer idx.runMu.Unlock()

	start := time.Now()
	metrics.IndexerRunsTotal.Inc()
	metrics.IndexerIsRunning.Set(1)
	defer func() {
		metrics.IndexerIsRunning.Set(0)
		metrics.IndexerLastRunTimestamp.SetToCurrentTime()
		metrics.IndexerLastRunDuration.Set(time.Since(start).Seconds())
	}()

	logging.Info("Indexing %s with %d workers", idx.root, idx.workers)

	existing := make(map[string]string)
	if !idx.force {
		var err error
		existing, err = idx.db.AssetHashes(ctx)
		if err != nil {
			return nil, fmt.Errorf("load existing hashes: %w", err)
		}
	}

	paths, err := idx.enumerate()
	if err != nil {
		return nil, err
	}
	logging.Debug("Found %d asset files", len(paths))

	result := &Result{}
	jobs := make(chan string, channelBuffer)
	records := make(chan *fileRecord, channelBuffer)

	var skipped, failed int64
	var countMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < idx.workers; i++ {
		g.Go(func() error {
			for relPath := range jobs {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				rec, err := idx.processFile(relPath, existing)
				if err != nil {
					logging.Warn("Failed to process %s: %v", relPath, err)
					metrics.IndexerErrors.Inc()
					countMu.Lock()
					failed++
					countMu.Unlock()
					continue
				}
				if rec == nil {
					metrics.IndexerFilesSkipped.Inc()
					countMu.Lock()
					skipped++
					countMu.Unlock()
					continue
				}
				select {
				case records <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workerErr := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(records)
		workerErr <- err
	}()

	indexed, writeErr := idx.writeRecords(records)
	if writeErr != nil {
		// Unblock any workers still sending before waiting for them.
		go func() {
			for range records {
			}
		}()
	}
	err = <-workerErr
	if writeErr != nil {
		return nil, writeErr
	}

	result.Indexed = indexed
	result.Skipped = int(skipped)
	result.Failed = int(failed)

	if err != nil {
		// Cancelled mid-run: committed batches stay valid.
		result.Duration = time.Since(start)
		return result, err
	}

	if err := idx.finalize(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	logging.Info("Indexed %d new/changed, skipped %d unchanged, %d failed in %v",
		result.Indexed, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))
	return result, nil
}

// enumerate walks the tree and returns the relative paths of all asset
// files. Hidden entries are skipped; unreadable entries are logged and
// skipped without aborting the walk.
func (idx *Indexer) enumerate() ([]string, error) {
	if _, err := os.Stat(idx.root); err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}

	var paths []string
	walkErr := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != idx.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !assettypes.IsAsset(path) {
			return nil
		}
		rel, err := filepath.Rel(idx.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return paths, nil
}

// processFile extracts everything the catalog stores about one file. Returns
// (nil, nil) when the file is unchanged. Decode failures degrade to a record
// with basic file metadata only.
func (idx *Indexer) processFile(relPath string, existing map[string]string) (*fileRecord, error) {
	absPath := filepath.Join(idx.root, filepath.FromSlash(relPath))

	hash, err := hashing.File(absPath)
	if err != nil {
		return nil, err
	}
	if prev, ok := existing[relPath]; ok && prev == hash {
		return nil, nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}

	rec := &fileRecord{
		asset: database.Asset{
			Path:     relPath,
			Filename: filepath.Base(relPath),
			Filetype: assettypes.Filetype(relPath),
			FileHash: hash,
			FileSize: info.Size(),
		},
		pathTags: idx.extractor.Extract(relPath),
	}

	parts := strings.Split(relPath, "/")
	if len(parts) > 1 {
		rec.packName = parts[0]
		rec.packPath = parts[0]
		rec.packVersion = tags.Version(rec.packName)
		rec.asset.Category = strings.Join(parts[1:len(parts)-1], "/")
	}

	switch assettypes.TypeOf(relPath) {
	case assettypes.FileTypeImage:
		img, err := imaging.Open(absPath)
		if err != nil {
			// Corrupt or unsupported image: keep the file metadata row.
			logging.Debug("Cannot decode %s: %v", relPath, err)
			return rec, nil
		}
		b := img.Bounds()
		rec.asset.Width = b.Dx()
		rec.asset.Height = b.Dy()
		if r, ok := sprite.FirstSpriteBounds(img); ok {
			rec.asset.PreviewBounds = &r
		}
		rec.colors = colors.Dominant(img)
		if h, err := phash.Compute(img); err == nil {
			rec.phash = h
		} else {
			logging.Debug("Cannot hash %s: %v", relPath, err)
		}
	case assettypes.FileTypeAseprite:
		meta, err := aseprite.ParseFile(absPath)
		if err != nil {
			logging.Debug("Cannot parse %s: %v", relPath, err)
			return rec, nil
		}
		rec.asset.Width = meta.Width
		rec.asset.Height = meta.Height
		rec.asset.FrameCount = meta.FrameCount
		rec.asset.DurationMS = meta.DurationMS
		rec.aseTags = normalizeAseTags(meta.Tags)
	}

	return rec, nil
}

// writeRecords is the single writer: it consumes extraction output and
// commits it in batches.
func (idx *Indexer) writeRecords(records <-chan *fileRecord) (int, error) {
	packIDs := make(map[string]int64)
	indexed := 0
	inBatch := 0

	batch, err := idx.db.BeginBatch()
	if err != nil {
		return 0, err
	}

	for rec := range records {
		if err := idx.writeRecord(batch, rec, packIDs); err != nil {
			return indexed, idx.db.EndBatch(batch, err)
		}
		indexed++
		inBatch++
		metrics.IndexerFilesIndexed.Inc()

		if inBatch >= batchSize {
			if err := idx.db.EndBatch(batch, nil); err != nil {
				return indexed, err
			}
			batch, err = idx.db.BeginBatch()
			if err != nil {
				return indexed, err
			}
			inBatch = 0
			// Pack ids stay valid across batches; keep the cache.
		}
	}

	return indexed, idx.db.EndBatch(batch, nil)
}

func (idx *Indexer) writeRecord(batch *database.Batch, rec *fileRecord, packIDs map[string]int64) error {
	if rec.packName != "" {
		id, ok := packIDs[rec.packPath]
		if !ok {
			var err error
			id, err = idx.db.UpsertPack(batch, rec.packName, rec.packPath, rec.packVersion)
			if err != nil {
				return err
			}
			packIDs[rec.packPath] = id
		}
		rec.asset.PackID = id
	}

	assetID, err := idx.db.UpsertAsset(batch, &rec.asset)
	if err != nil {
		return err
	}
	if len(rec.pathTags) > 0 {
		if err := idx.db.AddTags(batch, assetID, rec.pathTags, "path"); err != nil {
			return err
		}
	}
	if len(rec.aseTags) > 0 {
		if err := idx.db.AddTags(batch, assetID, rec.aseTags, "aseprite"); err != nil {
			return err
		}
	}
	if len(rec.colors) > 0 {
		if err := idx.db.SetColors(batch, assetID, rec.colors); err != nil {
			return err
		}
	}
	if len(rec.phash) > 0 {
		if err := idx.db.SetPHash(batch, assetID, rec.phash); err != nil {
			return err
		}
	}
	return nil
}

// finalize runs the post-passes that need every asset row present: pack
// asset counts and relation detection.
func (idx *Indexer) finalize() error {
	batch, err := idx.db.BeginBatch()
	if err != nil {
		return err
	}
	err = idx.db.UpdatePackCounts(batch)
	if err == nil {
		err = idx.db.DetectRelations(batch)
	}
	return idx.db.EndBatch(batch, err)
}

// PruneMissing removes catalog rows whose files no longer exist on disk and
// refreshes pack counts. Preview overrides are untouched.
func (idx *Indexer) PruneMissing(ctx context.Context) (int, error) {
	paths, err := idx.db.ListAssetPaths(ctx)
	if err != nil {
		return 0, err
	}

	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(idx.root, filepath.FromSlash(p))); os.IsNotExist(err) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	batch, err := idx.db.BeginBatch()
	if err != nil {
		return 0, err
	}
	for _, p := range missing {
		if err := idx.db.DeleteAsset(batch, p); err != nil {
			return 0, idx.db.EndBatch(batch, err)
		}
	}
	err = idx.db.UpdatePackCounts(batch)
	if err := idx.db.EndBatch(batch, err); err != nil {
		return 0, err
	}

	logging.Info("Pruned %d missing assets", len(missing))
	return len(missing), nil
}

// normalizeAseTags lowercases animation tag names so they share a namespace
// with path tags.
func normalizeAseTags(names []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
