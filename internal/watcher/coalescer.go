package watcher

import (
	"sync"
	"time"
)

// coalescer accumulates distinct paths and flushes them as one batch after
// window elapses since the last addition, per spec.md §4.5. Unlike the
// teacher's per-path operation-kind debouncer, no event kind is tracked:
// repeated changes to the same path within the window collapse to a single
// occurrence in the flushed batch.
type coalescer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool

	output chan []string
}

func newCoalescer(window time.Duration) *coalescer {
	return &coalescer{
		window:  window,
		pending: make(map[string]struct{}),
		output:  make(chan []string, 16),
	}
}

func (c *coalescer) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.pending[path] = struct{}{}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.flush)
}

func (c *coalescer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || len(c.pending) == 0 {
		return
	}
	batch := make([]string, 0, len(c.pending))
	for p := range c.pending {
		batch = append(batch, p)
	}
	c.pending = make(map[string]struct{})

	select {
	case c.output <- batch:
	default:
		// Buffer full: drop rather than block the fsnotify/polling
		// goroutine. The next scan/fsnotify event will re-observe any path
		// still changed, so no update is lost permanently.
	}
}

func (c *coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.output)
}
