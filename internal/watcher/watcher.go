// Package watcher emits coalesced change-path batches for a set of roots,
// per spec.md §4.5. Event kinds are not reported: every delivered path is
// treated downstream as "requires decision," so the watcher's only job is
// to tell the Pipeline which paths might have changed, debounced so editor
// save-storms and atomic replace sequences collapse into one batch.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// Sink receives a coalesced batch of changed paths.
type Sink func(paths []string)

// Handle is a live watch; Close stops it and releases the underlying
// fsnotify/polling resources. Safe to call more than once.
type Handle interface {
	Close() error
}

// Options configures debounce timing and the polling fallback.
type Options struct {
	// DebounceWindow is how long the watcher waits after the last observed
	// change before flushing a batch to the sink. Default: 2s.
	DebounceWindow time.Duration
	// PollInterval is the scan interval used when fsnotify cannot be
	// initialized. Default: 5s.
	PollInterval time.Duration
}

// DefaultOptions returns spec.md §4.5's default debounce window (2s) and a
// 5s polling fallback interval.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 2 * time.Second,
		PollInterval:   5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}

// watcher is the concrete Handle, backed by fsnotify with a polling
// fallback when fsnotify's inotify/kqueue handle cannot be created
// (network mounts, some container runtimes).
type watcher struct {
	roots     []string
	opts      Options
	coalescer *coalescer
	sink      Sink

	fsw     *fsnotify.Watcher
	polling *pollingWatcher

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Watch starts watching roots recursively and delivers coalesced batches of
// changed paths to sink until the returned Handle is closed. Paths
// delivered to sink are absolute.
func Watch(roots []string, sink Sink, opts Options) (Handle, error) {
	if len(roots) == 0 {
		return nil, cderrors.WatcherFailedErr("no roots configured", nil)
	}
	opts = opts.withDefaults()

	absRoots := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, cderrors.WatcherFailedErr(fmt.Sprintf("resolve root %s", r), err)
		}
		absRoots = append(absRoots, abs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		roots:     absRoots,
		opts:      opts,
		coalescer: newCoalescer(opts.DebounceWindow),
		sink:      sink,
		cancel:    cancel,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.polling = newPollingWatcher(absRoots, opts.PollInterval, w.coalescer.add)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.polling.run(ctx)
		}()
	} else {
		w.fsw = fsw
		for _, root := range absRoots {
			if err := addRecursive(fsw, root); err != nil {
				fsw.Close()
				cancel()
				return nil, cderrors.WatcherFailedErr(fmt.Sprintf("watch root %s", root), err)
			}
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runFsnotify(ctx)
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.forwardBatches(ctx)
	}()

	return w, nil
}

func (w *watcher) runFsnotify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories must be added for recursive coverage;
				// failure here just means that subtree goes unwatched.
				if info, err := statIsDir(ev.Name); err == nil && info {
					_ = w.fsw.Add(ev.Name)
				}
			}
			if ev.Op&fsnotify.Chmod != 0 && ev.Op == fsnotify.Chmod {
				continue // permission-only changes carry no content signal
			}
			w.coalescer.add(ev.Name)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Non-fatal per spec.md §7: watcher errors are logged by the
			// caller via the daemon's error channel, not here; the watcher
			// itself has no logger dependency.
		}
	}
}

func (w *watcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.coalescer.output:
			if !ok {
				return
			}
			if len(batch) > 0 {
				w.sink(batch)
			}
		}
	}
}

// Close stops the watcher and releases resources. Safe to call more than once.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.coalescer.stop()
	w.wg.Wait()
	return nil
}
