// Package watch reports changes to project files so a project can be
// recompiled while it is edited.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long changes must settle before they are reported.
const DefaultDebounce = 100 * time.Millisecond

// DefaultExtensions are the file types that trigger a recompile.
var DefaultExtensions = []string{".sql", ".yml", ".yaml"}

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Missing directories are skipped.
	Dirs       []string
	Extensions []string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// Watcher batches file system events under a set of directories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	exts     map[string]bool
	debounce time.Duration
	logger   *slog.Logger
}

// New starts watching opts.Dirs. Events are delivered once Run is called.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		exts:     make(map[string]bool),
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		w.exts[ext] = true
	}

	for _, dir := range opts.Dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			w.logger.Debug("watch directory does not exist", slog.String("dir", dir))
			continue
		}
		if err := w.addRecursive(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run calls fn with the sorted paths that changed each time changes settle.
// fn runs on the calling goroutine. Run blocks until ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context, changed []string)) error {
	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", slog.String("dir", event.Name), slog.Any("error", err))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.exts[filepath.Ext(event.Name)] {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			w.logger.Debug("files changed", slog.Int("files", len(changed)))
			fn(ctx, changed)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// addRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}
