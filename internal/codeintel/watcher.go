package codeintel

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ConaryLabs/mira/internal/logging"
)

var ignoredDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".nerd": true, "dist": true, "build": true,
}

// Watcher debounces fsnotify events for a project root and re-indexes
// changed files through an Indexer, the same debounce-then-settle shape as
// the teacher's MangleWatcher.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	indexer     *Indexer
	projectID   string
	root        string
	debounce    map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

func NewWatcher(indexer *Indexer, projectID, root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		indexer:     indexer,
		projectID:   projectID,
		root:        root,
		debounce:    make(map[string]time.Time),
		debounceDur: 400 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start walks root adding every directory to the watch list, then begins the
// debounced event loop in a goroutine.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			if addErr := w.watcher.Add(path); addErr != nil {
				logging.Get(logging.CategoryCodeIntel).Warn("watch %s: %v", path, addErr)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.run()
	return nil
}

func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCodeIntel).Error("watcher error: %v", err)
		case <-ticker.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	w.mu.Lock()
	w.debounce[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var paths []string
	for path, t := range w.debounce {
		if now.Sub(t) >= w.debounceDur {
			paths = append(paths, path)
			delete(w.debounce, path)
		}
	}
	w.mu.Unlock()

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if _, err := w.indexer.IndexFile(w.projectID, path, content); err != nil {
			logging.Get(logging.CategoryCodeIntel).Warn("reindex %s: %v", path, err)
		}
	}
}
