// Package watcher turns video files dropped into an inbox folder into
// projects.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler consumes one settled file.
type Handler func(ctx context.Context, path string) error

// Filter reports whether a path should be handled.
type Filter func(path string) bool

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultStableChecks = 2
	defaultSettleLimit  = 10 * time.Minute
)

// Inbox watches one directory.
type Inbox struct {
	dir     string
	handler Handler
	filter  Filter
	logger  *slog.Logger

	pollInterval time.Duration
	stableChecks int
	settleLimit  time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithPollInterval sets how often a growing file's size is sampled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Inbox) { w.pollInterval = d }
}

// WithSettleLimit bounds how long a file may keep growing.
func WithSettleLimit(d time.Duration) Option {
	return func(w *Inbox) { w.settleLimit = d }
}

func New(dir string, filter Filter, handler Handler, logger *slog.Logger, opts ...Option) *Inbox {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Inbox{
		dir:          dir,
		handler:      handler,
		filter:       filter,
		logger:       logger,
		pollInterval: defaultPollInterval,
		stableChecks: defaultStableChecks,
		settleLimit:  defaultSettleLimit,
		inFlight:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done, then waits for in-flight handlers. Files
// already present when Run starts are handled too.
func (w *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Info("inbox watcher started", "dir", w.dir)
	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info("inbox watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.dispatch(ctx, ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Inbox) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to scan inbox", "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.dispatch(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
}

func (w *Inbox) dispatch(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if w.filter != nil && !w.filter(path) {
		w.logger.Debug("ignoring non-video file", "file", filepath.Base(path))
		return
	}

	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()

		if err := w.waitStable(ctx, path); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, os.ErrNotExist) {
				w.logger.Warn("inbox file never settled", "file", filepath.Base(path), "error", err)
			}
			return
		}
		w.logger.Info("inbox file detected", "file", filepath.Base(path))
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("failed to import inbox file", "file", filepath.Base(path), "error", err)
		}
	}()
}

// waitStable returns once the file's size has stopped changing for
// stableChecks consecutive samples.
func (w *Inbox) waitStable(ctx context.Context, path string) error {
	deadline := time.Now().Add(w.settleLimit)
	last := int64(-1)
	stable := 0

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.ErrNotExist
		}
		if size := info.Size(); size == last && size > 0 {
			stable++
			if stable >= w.stableChecks {
				return nil
			}
		} else {
			last, stable = size, 0
		}
		if time.Now().After(deadline) {
			return errors.New("file still growing")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
