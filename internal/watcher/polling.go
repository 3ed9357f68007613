package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// pollingWatcher is the fallback used when fsnotify cannot be initialized
// (network mounts, some container runtimes). It periodically re-walks every
// root and reports any path whose mtime/size changed or that was added or
// removed since the previous scan.
type pollingWatcher struct {
	roots    []string
	interval time.Duration
	onChange func(path string)

	mu    sync.Mutex
	state map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPollingWatcher(roots []string, interval time.Duration, onChange func(string)) *pollingWatcher {
	return &pollingWatcher{
		roots:    roots,
		interval: interval,
		onChange: onChange,
		state:    make(map[string]fileSnapshot),
	}
}

func (p *pollingWatcher) run(ctx context.Context) {
	p.scan(func(string) {}) // establish baseline without emitting
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(p.onChange)
		}
	}
}

func (p *pollingWatcher) scan(report func(path string)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot)
	for _, root := range p.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			snap := fileSnapshot{modTime: info.ModTime(), size: info.Size()}
			current[path] = snap
			if prev, ok := p.state[path]; !ok || prev.modTime != snap.modTime || prev.size != snap.size {
				report(path)
			}
			return nil
		})
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			report(path)
		}
	}
	p.state = current
}
