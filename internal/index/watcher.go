package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/brief/internal/content"
	"github.com/starford/brief/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of KindCreated, KindUpdated, KindDeleted.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the corpus root and processes file
// change events until ctx is cancelled. Each change is applied to the
// briefcase and the index, relations are re-resolved, and cb (if non-nil)
// is called.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, loader *content.Loader, bc *content.Briefcase, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	s := &syncer{db: db, loader: loader, bc: bc, logger: logger, cb: cb}
	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
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
			s.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					s.indexDir(root, absPath)
					continue
				}
			}

			if !storage.IsDocument(absPath) {
				continue
			}
			rel, relErr := relPath(root, absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := KindUpdated
				if _, known := bc.Get(rel); !known {
					kind = KindCreated
				}
				s.upsert(rel, kind)

			case ev.Op&fsnotify.Remove != 0:
				s.remove(rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir).
				s.remove(rel)
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

// syncer applies single-file changes to the briefcase and the index.
type syncer struct {
	db     *DB
	loader *content.Loader
	bc     *content.Briefcase
	logger *slog.Logger
	cb     EventCallback
}

func (s *syncer) notify(kind, path string) {
	if err := RefreshRelations(s.db, s.bc, s.logger); err != nil {
		s.logger.Warn("watcher: refresh relations failed", slog.String("error", err.Error()))
	}
	if s.cb != nil {
		s.cb(kind, path)
	}
}

func (s *syncer) upsert(rel, kind string) bool {
	m, err := s.loader.LoadModel(rel)
	if err == nil {
		err = s.bc.Put(m)
	}
	if err == nil {
		err = IndexModel(s.db, m)
	}
	if err != nil {
		s.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		s.evict(rel)
		return false
	}
	s.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	s.notify(kind, rel)
	return true
}

// evict drops a previously loaded model whose file no longer builds, so the
// briefcase and the index never serve content that is gone from disk.
func (s *syncer) evict(rel string) {
	_, loaded := s.bc.Get(rel)
	cs, _ := s.db.GetChecksum(rel)
	if !loaded && cs == "" {
		return
	}
	s.remove(rel)
}

func (s *syncer) remove(rel string) bool {
	s.bc.Remove(rel)
	if err := s.db.DeleteDocument(rel); err != nil {
		s.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return false
	}
	s.logger.Debug("watcher: deleted", slog.String("path", rel))
	s.notify(KindDeleted, rel)
	return true
}

// reconcile does a lightweight sync using batch lookups: it removes index
// entries without a corresponding file on disk and indexes on-disk files
// whose checksum differs from the index.
func (s *syncer) reconcile() {
	checksums, err := s.db.AllChecksums()
	if err != nil {
		s.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := s.loader.Source().List("")
	if err != nil {
		s.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			s.remove(p)
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		s.upsert(p, KindCreated)
	}
}

// indexDir indexes any documents found in a newly created directory.
func (s *syncer) indexDir(root, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsDocument(path) {
			return nil
		}
		rel, relErr := relPath(root, path)
		if relErr != nil {
			return nil
		}
		s.upsert(rel, KindCreated)
		return nil
	})
}

func relPath(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", errors.New("outside root")
	}
	return filepath.ToSlash(rel), nil
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
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
