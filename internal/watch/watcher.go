// Package watch triggers rebuilds when files matching the source glob change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/metrics"
)

// Event is a filesystem change to a watched source file.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Handler reacts to one change event. It runs on the watch goroutine, so
// events are handled one at a time.
type Handler func(ctx context.Context, ev Event)

// Watcher subscribes to the static base directory of a glob and reports
// changes to files the glob matches.
type Watcher struct {
	glob          string
	base          string // absolute static prefix of glob
	pattern       string // remainder of glob, slash-separated
	includeHidden bool
	logger        *slog.Logger
	recorder      metrics.Recorder
	ready         chan struct{}
	readyOnce     sync.Once
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger change events are written to.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(w *Watcher) { w.recorder = r } }

// WithHidden makes hidden and editor temp files trigger rebuilds too.
func WithHidden(include bool) Option { return func(w *Watcher) { w.includeHidden = include } }

// New prepares a watcher for glob. Nothing is subscribed until Run.
func New(glob string, opts ...Option) (*Watcher, error) {
	slashGlob := filepath.ToSlash(glob)
	if !doublestar.ValidatePattern(slashGlob) {
		return nil, ferrors.ValidationError(fmt.Sprintf("invalid watch glob: %q", glob)).Build()
	}
	base, pattern := doublestar.SplitPattern(slashGlob)
	absBase, err := filepath.Abs(filepath.FromSlash(base))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "resolve watch base").Build()
	}

	w := &Watcher{
		glob:     glob,
		base:     absBase,
		pattern:  pattern,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Ready is closed once Run has subscribed to every directory under the base.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run subscribes and dispatches matching events to onChange until ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange Handler) error {
	if st, err := os.Stat(w.base); err != nil || !st.IsDir() {
		return ferrors.WatchError("watch directory not found").
			WithContext("dir", w.base).
			WithCause(err).
			Build()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "fsnotify").Fatal().Build()
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addDirsRecursive(fsw, w.base); err != nil {
		return err
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("Watching Elm sources", logfields.Glob(w.glob), logfields.Path(w.base))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.addDirsRecursive(fsw, ev.Name)
				}
			}
			w.dispatch(ctx, ev, onChange)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

// dispatch logs and forwards ev when it is a relevant change. It reports
// whether onChange was called.
func (w *Watcher) dispatch(ctx context.Context, ev fsnotify.Event, onChange Handler) bool {
	// Chmod-only events come from editors and indexers touching metadata.
	if ev.Op == fsnotify.Chmod || ev.Op == 0 {
		return false
	}
	if !w.Matches(ev.Name) {
		return false
	}
	if !w.includeHidden && shouldIgnoreEvent(ev.Name) {
		return false
	}

	w.logger.Log(ctx, logfields.LevelChange, "Elm change", logfields.Path(ev.Name), logfields.Op(ev.Op.String()))
	w.recorder.IncWatchEvent()
	onChange(ctx, Event{Path: ev.Name, Op: ev.Op})
	return true
}

// Matches reports whether path falls under the glob.
func (w *Watcher) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if w.pattern == "" {
		return rel == "."
	}
	ok, err := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return err == nil && ok
}

func (w *Watcher) addDirsRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !w.includeHidden && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("watch add failed", "dir", path, logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for hidden, editor swap and OS metadata files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db"
}
