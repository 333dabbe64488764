// Package watch provides incremental re-scan scheduling: it watches a
// connector's on-disk data root for rollout file changes and emits a
// debounced signal once a burst of writes has settled, so the ingest
// pipeline can re-scan without re-reading the whole corpus on every write.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits after the last observed
// write to a path before signaling a re-scan, to avoid re-indexing mid-write.
const defaultDebounce = 5 * time.Second

// Watcher debounces filesystem events under a root directory into a stream
// of "this root probably changed" signals.
type Watcher struct {
	fsw        *fsnotify.Watcher
	root       string
	debounce   time.Duration
	isRelevant func(path string) bool
	log        *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// New constructs a Watcher over root. If debounce is zero, defaultDebounce
// is used. If isRelevant is nil, the default Codex rollout-file pattern
// (rollout-*.jsonl, rollout-*.json) is used.
func New(root string, debounce time.Duration, isRelevant func(path string) bool, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if isRelevant == nil {
		isRelevant = isRolloutFile
	}
	return &Watcher{
		fsw:        fsw,
		root:       root,
		debounce:   debounce,
		isRelevant: isRelevant,
		log:        log,
		ready:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start adds root and all its subdirectories to the watch set and begins
// processing events in the background. Start returns once the initial
// directory tree has been registered; event processing continues until ctx
// is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.root); err != nil {
		return err
	}

	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Ready returns a channel that receives a value each time a debounced burst
// of changes has settled and a re-scan should run. The channel is
// buffered with capacity 1: a pending signal is not duplicated if the
// consumer hasn't caught up yet.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Stop halts event processing and releases the underlying OS watch
// handles.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.closed {
		close(w.done)
		w.closed = true
	}
	w.mu.Unlock()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isRelevant(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.debounceSignal()
			case event.Op&fsnotify.Remove != 0:
				w.debounceSignal()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("watch error", slog.String("root", w.root), slog.Any("error", err))
			}

		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

// debounceSignal resets the single pending timer; only when the timer
// finally fires (5 seconds, by default, after the last observed event) is
// a signal pushed to Ready().
func (w *Watcher) debounceSignal() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.ready <- struct{}{}:
		default:
			// A signal is already pending; the consumer will re-scan soon
			// enough to pick up this burst too.
		}
	})
}

func isRolloutFile(name string) bool {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "rollout-") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".jsonl" || ext == ".json"
}
