// Package watch implements the CLI's --watch mode: when any input file
// (corpus shard, vocabulary, or database) changes on disk, it triggers
// one full, non-incremental re-run of the requested operation. STRIDE
// has no incremental/online database update (spec §1 Non-goals); watch
// mode exists purely to re-trigger a from-scratch build or eval without
// the operator re-invoking the CLI by hand.
//
// Adapted from the teacher's internal/watcher.Watcher: the same
// fsnotify-plus-debounce-plus-batch shape, stripped of per-file content
// hashing and rename tracking since a full rebuild makes those moot.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rafael/stride/internal/stridelog"
)

// Handler is invoked once per debounced batch of changes.
type Handler func(changedPaths []string) error

// Config controls a Watcher.
type Config struct {
	// Paths are the files or directories to watch. Watching a file
	// directly (rather than its containing directory) still works
	// with fsnotify on Linux/macOS/Windows.
	Paths    []string
	Handler  Handler
	Debounce time.Duration
	Logger   *logrus.Logger
}

// Watcher monitors Paths and invokes Handler after changes settle.
type Watcher struct {
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	pending map[string]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher over cfg.Paths. It does not start watching
// until Start is called.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = stridelog.Default
	}

	for _, p := range cfg.Paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: watch %s: %w", p, err)
		}
	}

	return &Watcher{
		fsw:      fsw,
		handler:  cfg.Handler,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins processing filesystem events until ctx is canceled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop terminates the watcher and blocks until its goroutine exits.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[filepath.Clean(ev.Name)] = struct{}{}
			w.mu.Unlock()

			if !timerArmed {
				timer.Reset(w.debounce)
				timerArmed = true
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("watch: fsnotify error: %v", err)
		case <-timer.C:
			timerArmed = false
			w.flush()
		}
	}
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
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	w.logger.Infof("watch: %d path(s) changed, re-running", len(paths))
	if err := w.handler(paths); err != nil {
		w.logger.Errorf("watch: handler failed: %v", err)
	}
}
