package config

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoadFunc builds a fresh value, typically a catalog compiled from the
// resources directory.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Holder provides thread-safe access to a reloadable value.
//
// A reload builds a complete new value first and swaps it in only if the
// build succeeds; a failed reload keeps serving the old one.
type Holder[T any] struct {
	mu       sync.RWMutex
	current  T
	load     LoadFunc[T]
	logger   *slog.Logger
	onChange []func(old, new T)

	reloadMu sync.Mutex // serializes reloads
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// Result hook used by metrics: "success" or "failure".
	onResult func(result string)
}

// HolderOption configures a Holder.
type HolderOption[T any] func(*Holder[T])

// WithDebounce sets how long file events are coalesced before a reload.
func WithDebounce[T any](d time.Duration) HolderOption[T] {
	return func(h *Holder[T]) { h.debounce = d }
}

// WithReloadResult registers fn to be told the result of every reload.
func WithReloadResult[T any](fn func(result string)) HolderOption[T] {
	return func(h *Holder[T]) { h.onResult = fn }
}

// NewHolder creates a holder and performs the initial load. An initial load
// failure is returned; nothing is served from a broken start.
func NewHolder[T any](ctx context.Context, load LoadFunc[T], logger *slog.Logger, opts ...HolderOption[T]) (*Holder[T], error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Holder[T]{
		load:     load,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	v, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	h.current = v
	return h, nil
}

// Get returns the current value (thread-safe).
func (h *Holder[T]) Get() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers a callback run after every successful swap.
func (h *Holder[T]) OnChange(fn func(old, new T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Reload rebuilds the value. Returns error if loading fails (keeps old value).
func (h *Holder[T]) Reload(ctx context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.logger.Info("reloading")
	v, err := h.load(ctx)
	if err != nil {
		h.logger.Error("reload failed, keeping previous version", "error", err)
		h.report("failure")
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = v
	callbacks := append([]func(old, new T){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn(old, v)
	}

	h.report("success")
	h.logger.Info("reloaded successfully")
	return nil
}

func (h *Holder[T]) report(result string) {
	if h.onResult != nil {
		h.onResult(result)
	}
}

// WatchDir starts watching dir and its subdirectories. Changes to definition
// files (.yml, .yaml, .cue) trigger a debounced reload.
func (h *Holder[T]) WatchDir(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// fsnotify is not recursive: add every directory.
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = watcher

	h.wg.Add(1)
	go h.watchLoop()

	h.logger.Info("watching resources for changes", "dir", dir)
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder[T]) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-sigCh:
				h.logger.Info("received SIGHUP, reloading")
				_ = h.Reload(context.Background())
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info("listening for SIGHUP to reload")
}

// Stop stops watching for file changes and signals. Safe to call twice.
func (h *Holder[T]) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
	h.wg.Wait()
}

func (h *Holder[T]) watchLoop() {
	defer h.wg.Done()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// New subdirectories are watched too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = h.watcher.Add(event.Name)
					continue
				}
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			h.logger.Debug("definition file changed", "event", event.Op.String(), "file", event.Name)
			if timer == nil {
				timer = time.AfterFunc(h.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(h.debounce)
			}

		case <-fire:
			_ = h.Reload(context.Background())

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error("file watcher error", "error", err)

		case <-h.stopCh:
			return
		}
	}
}

func isDefinitionFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yml", ".yaml", ".cue":
		return true
	}
	return false
}
