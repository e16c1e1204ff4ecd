package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DefaultDebounce batches bursts of filesystem events, such as an editor
// writing a file in several steps.
const DefaultDebounce = 500 * time.Millisecond

// Change is one batch of edits to agent package files.
type Change struct {
	Paths []string // changed marker and definition files, sorted
}

// Watcher reports edits to agent packages. The registry is immutable once
// built, so a change only tells the operator that a restart is needed.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(Change)
	log      *slog.Logger
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// NewWatcher watches every directory below root. onChange is called from a
// timer goroutine once per debounced batch.
func NewWatcher(root string, debounce time.Duration, onChange func(Change), log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		log:      log,
		fsw:      fsw,
		pending:  make(map[string]bool),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("agent watch error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			// A copied-in package arrives with its files already present.
			if isPackage(afero.NewOsFs(), ev.Name) {
				w.queue(filepath.Join(ev.Name, DefinitionFile))
			}
			return
		}
	}
	switch filepath.Base(ev.Name) {
	case MarkerFile, DefinitionFile:
		w.queue(ev.Name)
	}
}

func (w *Watcher) queue(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[p] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	slices.Sort(paths)
	w.log.Info("agent packages changed, restart to reload", "path", w.root, "files", len(paths))
	if w.onChange != nil {
		w.onChange(Change{Paths: paths})
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}

// Close stops the watcher; a running Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
