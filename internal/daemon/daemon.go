package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sandy-sachin7/contextd/internal/embed"
	"github.com/sandy-sachin7/contextd/internal/store"
)

// Daemon wires a Store and an Embedder behind the Server's RequestHandler
// interface. It owns the PID file and delegates the socket lifecycle to
// Server; Daemon itself only knows how to answer a query, report stats, and
// report its own liveness.
type Daemon struct {
	cfg     Config
	server  *Server
	pidFile *PIDFile

	mu       sync.RWMutex
	store    *store.Store
	embedder embed.Embedder
	started  time.Time
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithEmbedder attaches an already-initialized Embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(d *Daemon) { d.embedder = e }
}

// WithStore attaches an already-opened Store.
func WithStore(s *store.Store) Option {
	return func(d *Daemon) { d.store = s }
}

// NewDaemon builds a Daemon and its JSON-RPC server. Use Option values to
// attach the Store and Embedder before calling Start; a Daemon with neither
// still starts and answers ping/status, but HandleQuery reports no index.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Daemon{
		cfg:     cfg,
		pidFile: NewPIDFile(cfg.PIDPath),
	}
	for _, opt := range opts {
		opt(d)
	}

	srv, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	srv.SetHandler(d)
	d.server = srv

	return d, nil
}

// Start ensures the socket/PID directories exist, writes the PID file, and
// blocks serving requests until ctx is canceled. A stale socket or PID file
// left behind by a crashed prior instance is cleaned up by Server and
// PIDFile respectively, not here.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pidFile.Write(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	d.mu.Lock()
	d.started = time.Now()
	d.mu.Unlock()

	err := d.server.ListenAndServe(ctx)
	d.cleanup()
	return err
}

// cleanup releases daemon-owned resources on shutdown.
func (d *Daemon) cleanup() {
	_ = d.pidFile.Remove()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	d.embedder = nil
}

// HandleQuery runs a hybrid search against the Store, embedding the query
// text first. An embedding failure at query time is logged and yields an
// empty result set rather than a client-visible error; a missing Store is
// the one condition this rejects outright.
func (d *Daemon) HandleQuery(ctx context.Context, params QueryParams) ([]QueryResult, error) {
	d.mu.RLock()
	st, emb := d.store, d.embedder
	d.mu.RUnlock()

	if st == nil {
		return nil, fmt.Errorf("no index found: store not configured")
	}

	opts := store.SearchOptions{
		Limit:         params.Limit,
		StartTime:     params.StartTime,
		EndTime:       params.EndTime,
		FileTypes:     params.FileTypes,
		Paths:         params.Paths,
		MinScore:      params.MinScore,
		RecencyWeight: params.RecencyWeight,
	}

	var results []store.SearchResult
	var err error
	switch {
	case emb == nil:
		results, err = st.FTSSearch(params.Query, opts)
	default:
		vec, embedErr := emb.Embed(ctx, params.Query)
		if embedErr != nil {
			slog.Error("query embedding failed, returning no results", "error", embedErr)
			return []QueryResult{}, nil
		} else {
			results, err = st.HybridSearch(params.Query, vec, opts)
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]QueryResult, len(results))
	for i, r := range results {
		out[i] = QueryResult{
			Content:      r.Content,
			Score:        r.Score,
			FilePath:     r.FilePath,
			FileType:     r.FileType,
			LastModified: r.LastModified,
		}
	}
	return out, nil
}

// GetStats reports the Store's current size. A nil Store reports zeroes
// rather than an error.
func (d *Daemon) GetStats() (StatsResult, error) {
	d.mu.RLock()
	st := d.store
	d.mu.RUnlock()
	if st == nil {
		return StatsResult{}, nil
	}

	s, err := st.Stats()
	if err != nil {
		return StatsResult{}, err
	}
	return StatsResult{FileCount: s.FileCount, ChunkCount: s.ChunkCount, DBSizeBytes: s.DBSizeBytes}, nil
}

// EmbedderInfo reports the configured embedder's model name and readiness,
// consumed by Server when it assembles a status response.
func (d *Daemon) EmbedderInfo() (name string, ready bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.embedder == nil {
		return "unavailable", false
	}
	return d.embedder.ModelName(), true
}

// GetStatus reports the daemon's own liveness, independent of the Server's
// socket handling. Exposed directly for the CLI status command and for
// tests that don't need the full Unix-socket round trip.
func (d *Daemon) GetStatus() StatusResult {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()

	name, ready := d.EmbedderInfo()
	status := StatusResult{
		Running:      true,
		PID:          os.Getpid(),
		Uptime:       time.Since(started).Round(time.Second).String(),
		EmbedderType: name,
	}
	if ready {
		status.EmbedderStatus = "ready"
	} else {
		status.EmbedderStatus = "unavailable"
	}
	return status
}
