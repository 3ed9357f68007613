package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sandy-sachin7/contextd/internal/async"
	"github.com/sandy-sachin7/contextd/internal/daemon"
	"github.com/sandy-sachin7/contextd/internal/logging"
	"github.com/sandy-sachin7/contextd/internal/mcp"
	"github.com/sandy-sachin7/contextd/internal/pipeline"
	"github.com/sandy-sachin7/contextd/internal/store"
	"github.com/sandy-sachin7/contextd/internal/telemetry"
	"github.com/sandy-sachin7/contextd/internal/transport"
)

func newServeCmd() *cobra.Command {
	var debug bool
	var transport string
	var session string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the query/stats API: MCP tool protocol (stdio) or HTTP",
		Long: `Serves the query and stats operations two ways, per --transport:

  stdio  The Model Context Protocol over stdio, so an AI client (Claude
         Code, Cursor, etc.) can search the indexed codebase. Logs
         exclusively to file: stdout is reserved for JSON-RPC.
  http   A plain HTTP API (POST /query, GET /stats) on --addr, for any
         client that isn't speaking MCP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = session // reserved for future multi-client session scoping
			if transport == "stdio" {
				if err := verifyStdinForMCP(); err != nil {
					return err
				}
			}
			return runServe(cmd.Context(), transport, addr)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Accepted but unused: serve always logs at debug level to the log file")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over: stdio or http")
	cmd.Flags().StringVar(&session, "session", "", "Session identifier (accepted but currently unused)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on when --transport=http")

	return cmd
}

// runServe loads configuration for the current project, opens its store and
// embedder, starts the indexing pipeline in the background, and blocks
// serving query/stats calls over the given transport until ctx is canceled.
// addr is only used when transport is "http".
func runServe(ctx context.Context, transport string, addr string) error {
	cleanup, err := logging.SetupStdioMode()
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer cleanup()

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	offline := os.Getenv("CONTEXTD_EMBEDDER") == "static"
	comps, err := openComponents(ctx, root, offline)
	if err != nil {
		return fmt.Errorf("open components: %w", err)
	}
	defer comps.Close()

	if err := os.MkdirAll(filepath.Dir(comps.cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	backend := &localBackend{store: comps.store, rootPath: root}

	var metrics *telemetry.QueryMetrics
	if err := telemetry.InitTelemetrySchema(comps.store.DB()); err == nil {
		if metricsStore, err := telemetry.NewSQLiteMetricsStore(comps.store.DB()); err == nil {
			metrics = telemetry.NewQueryMetrics(metricsStore)
			defer func() { _ = metrics.Close() }()
		}
	}

	p := comps.newPipeline(root)
	dataDir := filepath.Dir(comps.cfg.Store.Path)

	switch transport {
	case "http":
		err = runServeHTTP(ctx, backend, addr, p, dataDir)
	default:
		err = runServeMCP(ctx, backend, root, metrics, p, dataDir)
	}
	return err
}

// runServeMCP runs the stdio MCP tool-protocol server, backed by backend,
// while indexing proceeds in the background.
func runServeMCP(ctx context.Context, backend *localBackend, root string, metrics *telemetry.QueryMetrics, p *pipeline.Pipeline, dataDir string) error {
	server, err := mcp.NewServer(backend, root)
	if err != nil {
		return fmt.Errorf("construct MCP server: %w", err)
	}
	defer server.Close()

	progress := async.NewIndexProgress()
	server.SetIndexProgress(progress)
	if metrics != nil {
		server.SetMetrics(metrics)
	}

	indexDone := runIndexingInBackground(ctx, p, progress, dataDir)
	err = server.Serve(ctx, "stdio")
	<-indexDone
	return err
}

// runServeHTTP runs the gin-based HTTP transport (POST /query, GET /stats),
// while indexing proceeds in the background.
func runServeHTTP(ctx context.Context, backend *localBackend, addr string, p *pipeline.Pipeline, dataDir string) error {
	server, err := transport.NewServer(backend)
	if err != nil {
		return fmt.Errorf("construct HTTP server: %w", err)
	}

	progress := async.NewIndexProgress()
	indexDone := runIndexingInBackground(ctx, p, progress, dataDir)
	err = server.ListenAndServe(ctx, addr)
	<-indexDone
	return err
}

// runIndexingInBackground starts the indexing pipeline on a goroutine and
// returns a channel closed once it finishes (or ctx is canceled). It holds
// an indexing.lock in dataDir for the duration, so a crash mid-run is
// visible to `contextd doctor` afterward via async.HasIncompleteLock.
func runIndexingInBackground(ctx context.Context, p *pipeline.Pipeline, progress *async.IndexProgress, dataDir string) <-chan struct{} {
	done := make(chan struct{})
	if err := async.WriteIndexLock(dataDir); err != nil {
		slog.Warn("failed to write indexing lock", slog.String("error", err.Error()))
	}
	go func() {
		defer close(done)
		defer func() {
			if err := async.RemoveIndexLock(dataDir); err != nil {
				slog.Warn("failed to remove indexing lock", slog.String("error", err.Error()))
			}
		}()
		progress.SetStage(async.StageScanning, 0)
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			progress.SetError(err.Error())
			return
		}
		progress.SetReady()
	}()
	return done
}

// localBackend answers MCP query/stats calls directly against an open
// store, for use when no daemon process is running alongside the MCP
// server. It satisfies mcp.QueryBackend without going over a socket.
type localBackend struct {
	store    *store.Store
	rootPath string
}

func (b *localBackend) Query(_ context.Context, params daemon.QueryParams) ([]daemon.QueryResult, error) {
	opts := store.SearchOptions{
		Limit:         params.Limit,
		StartTime:     params.StartTime,
		EndTime:       params.EndTime,
		FileTypes:     params.FileTypes,
		Paths:         params.Paths,
		MinScore:      params.MinScore,
		RecencyWeight: params.RecencyWeight,
	}

	results, err := b.store.FTSSearch(params.Query, opts)
	if err != nil {
		return nil, err
	}

	out := make([]daemon.QueryResult, len(results))
	for i, r := range results {
		out[i] = daemon.QueryResult{
			Content:      r.Content,
			Score:        r.Score,
			FilePath:     r.FilePath,
			FileType:     r.FileType,
			LastModified: r.LastModified,
		}
	}
	return out, nil
}

func (b *localBackend) Stats(_ context.Context) (*daemon.StatsResult, error) {
	s, err := b.store.Stats()
	if err != nil {
		return nil, err
	}
	return &daemon.StatsResult{
		FileCount:   s.FileCount,
		ChunkCount:  s.ChunkCount,
		DBSizeBytes: s.DBSizeBytes,
	}, nil
}

// verifyStdinForMCP checks that stdin is a pipe, not an interactive
// terminal. An MCP client always connects over a pipe; a terminal means the
// user ran `contextd serve` directly, which will hang waiting for JSON-RPC
// that never arrives.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: contextd serve expects to be launched by an MCP client")
	}
	return nil
}
