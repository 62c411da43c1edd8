package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 200 * time.Millisecond

// Watcher reloads a catalog file into a Store when it changes on disk.
// A file that fails to parse leaves the previous catalog in place.
type Watcher struct {
	path  string
	store *Store
}

// NewWatcher returns nil when path or store is empty.
func NewWatcher(path string, store *Store) *Watcher {
	if path == "" || store == nil {
		return nil
	}
	return &Watcher{path: path, store: store}
}

// Start watches the file's directory until ctx is done. Editors that replace
// files atomically emit create events on the directory, not the file.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if errAdd := fsw.Add(filepath.Dir(w.path)); errAdd != nil {
		_ = fsw.Close()
		return errAdd
	}
	go w.run(ctx, fsw)
	log.Infof("catalog watcher started (path=%s)", w.path)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer func() { _ = fsw.Close() }()

	target := filepath.Clean(w.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, w.reload)
		case errWatch, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.WithError(errWatch).Warn("catalog watcher: fsnotify error")
		}
	}
}

func (w *Watcher) reload() {
	models, err := LoadFile(w.path)
	if err != nil {
		log.WithError(err).Warn("catalog watcher: keeping previous catalog")
		return
	}
	w.store.Replace(models)
	log.Infof("catalog reloaded: %d models", len(models))
}
