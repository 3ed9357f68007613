// Package pipeline is the heart of the system, per spec.md §4.7: it walks
// configured roots on startup, watches them for subsequent changes, and for
// every candidate file decides whether to chunk, embed, and atomically
// persist it into the Store.
package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sandy-sachin7/contextd/internal/chunk"
	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/ignore"
	"github.com/sandy-sachin7/contextd/internal/plugin"
	"github.com/sandy-sachin7/contextd/internal/store"
	"github.com/sandy-sachin7/contextd/internal/watcher"
)

// DefaultConcurrency is the default permit count for the index-task
// semaphore, per spec.md §4.7.
const DefaultConcurrency = 4

// Config configures a Pipeline's roots, plugin dispatch table, and
// concurrency limit.
type Config struct {
	Roots         []string
	Plugins       map[string][]string // extension (no dot) -> external parser argv
	Concurrency   int                 // default DefaultConcurrency
	WatchDebounce time.Duration       // default watcher.DefaultOptions().DebounceWindow
}

// Pipeline wires the Store, Embedder, chunk Dispatcher, and Plugin runner
// together behind the initial-scan and event-loop entry surfaces of
// spec.md §4.7.
type Pipeline struct {
	cfg      Config
	store    *store.Store
	embedder embed.Embedder
	chunker  *chunk.Dispatcher
	runner   *plugin.Runner
	logger   *slog.Logger

	sem *semaphore.Weighted

	mu      sync.Mutex
	filters map[string]*ignore.Filter // keyed by absolute root

	wg     sync.WaitGroup
	handle watcher.Handle
}

// New builds a Pipeline. st, emb, and chunker must be non-nil and are not
// owned by the Pipeline (callers close them).
func New(cfg Config, st *store.Store, emb embed.Embedder, chunker *chunk.Dispatcher, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		embedder: emb,
		chunker:  chunker,
		runner:   plugin.NewRunner(),
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		filters:  make(map[string]*ignore.Filter),
	}
}

// Run performs the initial scan of every configured root, then starts the
// watcher and blocks draining its coalesced batches until ctx is canceled.
// It returns the error from the initial scan, if any; watcher errors after
// that point are logged, not returned, per spec.md §7.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, root := range p.cfg.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.filters[absRoot] = ignore.NewFilter(absRoot, p.logger)
		p.mu.Unlock()

		if err := p.scanRoot(ctx, absRoot); err != nil {
			return err
		}
	}

	opts := watcher.DefaultOptions()
	if p.cfg.WatchDebounce > 0 {
		opts.DebounceWindow = p.cfg.WatchDebounce
	}
	h, err := watcher.Watch(p.cfg.Roots, p.onBatch, opts)
	if err != nil {
		return err
	}
	p.handle = h

	<-ctx.Done()
	h.Close()
	p.wg.Wait()
	return nil
}

// RunOnce scans every configured root and waits for all submitted index
// tasks to finish, without starting the watcher. Used by the one-shot
// `contextd index` CLI command; Run is what the daemon uses for the
// scan-then-watch lifecycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	for _, root := range p.cfg.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.filters[absRoot] = ignore.NewFilter(absRoot, p.logger)
		p.mu.Unlock()

		if err := p.scanRoot(ctx, absRoot); err != nil {
			return err
		}
	}
	p.wg.Wait()
	return nil
}

// scanRoot walks root, submitting an index task for every regular,
// non-ignored file. The semaphore permit is acquired before the task is
// spawned, so the walker naturally backpressures against slow workers.
func (p *Pipeline) scanRoot(ctx context.Context, root string) error {
	filter := p.filterFor(root)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entry: skip, don't abort the whole walk
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if filter.IsIgnored(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.IsIgnored(path, false) {
			return nil
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		p.wg.Add(1)
		go func(path string) {
			defer p.sem.Release(1)
			defer p.wg.Done()
			p.indexFile(ctx, path)
		}(path)
		return nil
	})
}

// onBatch is the watcher's sink: for each path in a coalesced batch it
// deduplicates (the batch itself is already deduplicated by the watcher's
// coalescer), skips directories, skips the VCS ignore file itself to avoid
// a self-triggering loop on ignore-rule writes, consults the Ignore filter,
// and submits an index task if the path still exists as a regular file.
// The semaphore permit is acquired inside the task so the drain loop is
// never blocked, per spec.md §4.7.
func (p *Pipeline) onBatch(paths []string) {
	for _, path := range paths {
		if filepath.Base(path) == ignore.VCSIgnoreFile {
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		filter := p.filterFor(filepath.Dir(path))
		if filter.IsIgnored(path, false) {
			continue
		}

		p.wg.Add(1)
		go func(path string) {
			defer p.wg.Done()
			ctx := context.Background()
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer p.sem.Release(1)
			p.indexFile(ctx, path)
		}(path)
	}
}

// filterFor returns the Ignore filter for whichever configured root is the
// longest matching ancestor of dir, constructing one on first use for an
// untracked directory (e.g. a newly-watched path outside the initial root
// set isn't expected, but defensive construction avoids a nil dereference).
func (p *Pipeline) filterFor(dir string) *ignore.Filter {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best string
	for root := range p.filters {
		if isUnderOrEqual(dir, root) && len(root) > len(best) {
			best = root
		}
	}
	if best != "" {
		return p.filters[best]
	}

	f := ignore.NewFilter(dir, p.logger)
	p.filters[dir] = f
	return f
}

// isUnderOrEqual reports whether path is root itself or nested under it.
func isUnderOrEqual(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
