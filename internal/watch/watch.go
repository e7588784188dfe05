// Package watch keeps a descriptor library in sync with a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mahara/pieform/pkg/model"
)

// DefaultDebounce batches bursts of writes from editors.
const DefaultDebounce = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload registers a callback run after every reload attempt with its
// error, nil on success.
func WithOnReload(fn func(*model.Library, error)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithBuilderOptions passes options to the library builder.
func WithBuilderOptions(options ...model.BuilderOption) Option {
	return func(w *Watcher) {
		w.builder = append(w.builder, options...)
	}
}

// Watcher reloads the library whenever a descriptor file changes. A reload
// that fails keeps the previous library.
type Watcher struct {
	dir      string
	logger   *zap.Logger
	debounce time.Duration
	onReload func(*model.Library, error)
	builder  []model.BuilderOption

	current atomic.Pointer[model.Library]

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New loads dir once. The initial load must succeed.
func New(dir string, options ...Option) (*Watcher, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("watch: directory is required")
	}
	w := &Watcher{
		dir:      filepath.Clean(dir),
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
	}
	for _, opt := range options {
		if opt != nil {
			opt(w)
		}
	}
	lib, err := w.load()
	if err != nil {
		return nil, err
	}
	w.current.Store(lib)
	return w, nil
}

// Library returns the current library.
func (w *Watcher) Library() *model.Library {
	return w.current.Load()
}

// Descriptor looks a form up in the current library.
func (w *Watcher) Descriptor(name string) (model.Descriptor, bool) {
	return w.Library().Descriptor(name)
}

// Start begins watching in a goroutine. It returns once the directory is
// registered with the notifier.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create notifier: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch: add %s: %w", w.dir, err)
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true
	go w.run(ctx, fsw, w.stop, w.done)
	w.logger.Info("watching descriptors", zap.String("dir", w.dir))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stop, done, fsw := w.stop, w.done, w.fsw
	w.mu.Unlock()

	close(stop)
	<-done
	return fsw.Close()
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("descriptor change", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			trigger = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("notifier error", zap.Error(err))
		case <-trigger:
			trigger = nil
			w.Reload()
		}
	}
}

// Reload reloads the directory now.
func (w *Watcher) Reload() error {
	lib, err := w.load()
	if err != nil {
		w.logger.Error("reload descriptors", zap.String("dir", w.dir), zap.Error(err))
	} else {
		w.current.Store(lib)
		w.logger.Info("descriptors reloaded", zap.Int("forms", len(lib.Names())))
	}
	if w.onReload != nil {
		w.onReload(w.current.Load(), err)
	}
	return err
}

func (w *Watcher) load() (*model.Library, error) {
	lib, err := model.LoadFS(os.DirFS(w.dir), w.builder...)
	if err != nil {
		return nil, fmt.Errorf("watch: load %s: %w", w.dir, err)
	}
	return lib, nil
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
