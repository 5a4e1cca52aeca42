package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"asset-index/internal/logging"
)

// Debounce window between a filesystem event and the re-index it triggers.
// Copies of large packs land as bursts of events; one run covers them all.
const watchDebounce = 2 * time.Second

// Watch runs an initial indexing pass, then re-indexes whenever the asset
// tree changes, until the context is cancelled. Directories created while
// watching are picked up recursively.
func (idx *Indexer) Watch(ctx context.Context) error {
	if _, err := idx.Run(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("Failed to close watcher: %v", err)
		}
	}()

	if err := addRecursive(watcher, idx.root); err != nil {
		return err
	}
	logging.Info("Watching %s for changes", idx.root)

	var timer *time.Timer
	trigger := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			logging.Debug("Filesystem event: %s", event)
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						logging.Warn("Cannot watch new directory %s: %v", event.Name, err)
					}
				}
			}
			schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watcher error: %v", err)

		case <-trigger:
			result, err := idx.Run(ctx)
			if err == ErrAlreadyRunning {
				schedule() // try again after the active run
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				logging.Error("Re-index failed: %v", err)
				continue
			}
			if pruned, err := idx.PruneMissing(ctx); err != nil {
				logging.Warn("Prune after re-index failed: %v", err)
			} else {
				result.Pruned = pruned
			}
		}
	}
}

// addRecursive registers a directory and all its subdirectories with the
// watcher, skipping hidden directories.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Skipping unwatchable entry %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
