package git

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/revlog/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// DefaultDebounce is how long the watcher waits after the last ref change
// before signalling.
const DefaultDebounce = 300 * time.Millisecond

// Watcher signals when HEAD, a branch or a tag of a repository changes.
// Bursts of file events (a commit touches several files) collapse into one
// signal.
type Watcher struct {
	gitDir   string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	events   chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	timer *time.Timer

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher starts watching gitDir. debounce <= 0 uses DefaultDebounce.
func NewWatcher(gitDir string, debounce time.Duration) (*Watcher, error) {
	if gitDir == "" {
		return nil, errors.New("watch: no git directory")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		gitDir:   gitDir,
		debounce: debounce,
		fsw:      fsw,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	if err := fsw.Add(gitDir); err != nil {
		fsw.Close()
		return nil, err
	}
	for _, sub := range []string{"refs/heads", "refs/tags"} {
		w.addTree(filepath.Join(gitDir, filepath.FromSlash(sub)))
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// addTree watches dir and every directory below it (branch names with
// slashes live in subdirectories).
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			watchLog.Debug("watch_add_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Events delivers one value per debounced burst of ref changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.addTree(ev.Name)
				}
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// relevant reports whether a changed path can move HEAD, a branch or a tag.
func (w *Watcher) relevant(name string) bool {
	if strings.HasSuffix(name, ".lock") {
		return false
	}
	rel, err := filepath.Rel(w.gitDir, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	switch {
	case rel == "HEAD", rel == "packed-refs":
		return true
	case strings.HasPrefix(rel, "refs/heads/"), strings.HasPrefix(rel, "refs/tags/"):
		return true
	default:
		return false
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		watchLog.Debug("watch_refs_changed", slog.String("git_dir", w.gitDir))
		select {
		case w.events <- struct{}{}:
		default:
		}
	})
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}
