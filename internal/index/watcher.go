package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/cleaan/internal/storage"
)

// Event kinds reported by Watch.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// Event describes one watcher-driven repository change.
type Event struct {
	Kind string
	ID   string
	Path string
}

// EventCallback is called after each successful index mutation.
type EventCallback func(Event)

// Watch keeps the index in sync with the vault until ctx is cancelled.
// Directories created at runtime are added to the watch list. Renames
// delete the old entry right away and schedule a debounced reconcile pass
// that picks up the new path.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	remove := func(rel, op string) {
		id, err := db.DeleteNote(rel)
		if err != nil {
			logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("op", op), slog.String("error", err.Error()))
			return
		}
		if id == "" {
			return
		}
		logger.Debug("watcher: deleted", slog.String("path", rel), slog.String("op", op))
		emit(Event{Kind: EventDeleted, ID: id, Path: rel})
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(db, store, vaultRoot, ev.Name, logger, emit)
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				id, prev, idxErr := ReindexFile(db, rel, data, time.Now())
				if idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				emitIndexed(emit, kind, id, prev, rel)

			case ev.Op&fsnotify.Remove != 0:
				remove(rel, "remove")

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new
				// path arrives as a separate Create when it stays inside
				// a watched directory.
				remove(rel, "rename")
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a file on disk and indexes files
// whose checksum is missing or different.
func reconcile(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, emit func(Event)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List(ctx, "")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if id, delErr := db.DeleteNote(p); delErr == nil && id != "" {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			emit(Event{Kind: EventDeleted, ID: id, Path: p})
		}
	}

	for _, m := range metas {
		if checksums[m.Path] == m.Checksum {
			continue
		}
		data, readErr := store.Read(m.Path)
		if readErr != nil {
			continue
		}
		id, prev, idxErr := ReindexFile(db, m.Path, data, m.UpdatedAt)
		if idxErr != nil {
			logger.Warn("reconcile: index failed", slog.String("path", m.Path), slog.String("error", idxErr.Error()))
			continue
		}
		logger.Debug("reconcile: indexed", slog.String("path", m.Path))
		kind := EventCreated
		if prev != "" {
			kind = EventUpdated
		}
		emitIndexed(emit, kind, id, prev, m.Path)
	}
}

// indexNewDir indexes any .md files found in a newly created directory.
func indexNewDir(db *DB, store storage.Provider, vaultRoot, dirPath string, logger *slog.Logger, emit func(Event)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := store.Read(rel)
		if readErr != nil {
			return nil
		}
		if id, prev, idxErr := ReindexFile(db, rel, data, time.Now()); idxErr == nil {
			logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			emitIndexed(emit, EventCreated, id, prev, rel)
		}
		return nil
	})
}

// emitIndexed reports an indexed file. When the file's id changed, the old
// id is reported deleted first and the new one as created.
func emitIndexed(emit func(Event), kind, id, prev, path string) {
	if prev != "" && prev != id {
		emit(Event{Kind: EventDeleted, ID: prev, Path: path})
		kind = EventCreated
	}
	emit(Event{Kind: kind, ID: id, Path: path})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
