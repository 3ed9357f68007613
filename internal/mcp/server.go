// Package mcp implements the Model Context Protocol (MCP) server for contextd.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sandy-sachin7/contextd/internal/async"
	"github.com/sandy-sachin7/contextd/internal/daemon"
	"github.com/sandy-sachin7/contextd/internal/telemetry"
	"github.com/sandy-sachin7/contextd/pkg/version"
)

// QueryBackend is whatever answers Query/Stats calls on the MCP server's
// behalf. *daemon.Client satisfies it by dialing the daemon's Unix socket;
// tests substitute a stub.
type QueryBackend interface {
	Query(ctx context.Context, params daemon.QueryParams) ([]daemon.QueryResult, error)
	Stats(ctx context.Context) (*daemon.StatsResult, error)
}

// Server is the MCP server for contextd. It bridges AI clients (Claude Code,
// Cursor) with the daemon's hybrid search index over stdio JSON-RPC.
type Server struct {
	mcp      *mcp.Server
	backend  QueryBackend
	rootPath string
	logger   *slog.Logger

	// Background indexing progress (nil if not indexing)
	indexProgress *async.IndexProgress

	// Query telemetry (optional, set via SetMetrics)
	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// NewServer creates a new MCP server backed by the given query backend.
// rootPath is used for project detection (go.mod, package.json, etc.) when
// reporting stats.
func NewServer(backend QueryBackend, rootPath string) (*Server, error) {
	if backend == nil {
		return nil, errors.New("query backend is required")
	}

	s := &Server{
		backend:  backend,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "contextd",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools
	)

	s.registerTools()

	return s, nil
}

// SetIndexProgress sets the index progress tracker for background indexing.
// When set, the query tool reports a "still indexing" notice instead of
// silently returning a partial result set.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexProgress = progress
}

// SetMetrics sets the query telemetry collector. When set, every query tool
// call is recorded for later analysis.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "contextd", version.Version
}

// registerTools registers the query and stats tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "query",
		Description: "Search the indexed codebase and documentation using hybrid full-text " +
			"and semantic search, ranked by reciprocal rank fusion. Use this for finding " +
			"relevant code and docs by meaning or keyword.",
	}, s.mcpQueryHandler)
	s.logger.Debug("registered tool", slog.String("name", "query"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report index size and project information. Use to check whether the index is ready before querying.",
	}, s.mcpStatsHandler)
	s.logger.Debug("registered tool", slog.String("name", "stats"))
}

// mcpQueryHandler is the MCP SDK handler for the query tool.
func (s *Server) mcpQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	s.mu.RLock()
	progress := s.indexProgress
	metrics := s.metrics
	s.mu.RUnlock()

	if progress != nil && progress.IsIndexing() {
		snap := progress.Snapshot()
		return nil, QueryOutput{}, NewInvalidParamsError(
			formatIndexingNotice(snap.ProgressPct, snap.FilesProcessed, snap.FilesTotal, snap.Stage))
	}

	params := daemon.QueryParams{
		Query:         input.Query,
		Limit:         input.Limit,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		FileTypes:     input.FileTypes,
		Paths:         input.Paths,
		MinScore:      input.MinScore,
		RecencyWeight: input.RecencyWeight,
	}
	if err := params.Validate(); err != nil {
		return nil, QueryOutput{}, NewInvalidParamsError(err.Error())
	}

	start := time.Now()
	results, err := s.backend.Query(ctx, params)
	latency := time.Since(start)

	if metrics != nil {
		metrics.Record(telemetry.QueryEvent{
			Query:       input.Query,
			QueryType:   telemetry.QueryTypeMixed,
			ResultCount: len(results),
			Latency:     latency,
			Timestamp:   time.Now(),
		})
	}

	if err != nil {
		s.logger.Error("query failed", slog.String("error", err.Error()))
		return nil, QueryOutput{}, MapError(err)
	}

	output := QueryOutput{Results: make([]QueryResultOutput, len(results))}
	for i, r := range results {
		output.Results[i] = QueryResultOutput{
			Content:      r.Content,
			Score:        r.Score,
			FilePath:     r.FilePath,
			FileType:     fileTypeOrGuess(r.FilePath, r.FileType),
			LastModified: r.LastModified,
		}
	}

	return nil, output, nil
}

// mcpStatsHandler is the MCP SDK handler for the stats tool.
func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}

	detector := NewProjectDetector(s.rootPath, s.logger)
	project := detector.Detect()

	return nil, StatsOutput{
		Project:     *project,
		FileCount:   stats.FileCount,
		ChunkCount:  stats.ChunkCount,
		DBSizeBytes: stats.DBSizeBytes,
	}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP server stops when its context is
// canceled, so there's nothing else to release here.
func (s *Server) Close() error {
	return nil
}

func fileTypeOrGuess(path, fileType string) string {
	if fileType != "" {
		return fileType
	}
	if path == "" {
		return ""
	}
	return MimeTypeForPath(path)
}

func formatIndexingNotice(pct float64, processed, total int, stage string) string {
	return fmt.Sprintf("indexing in progress (%.1f%%, %d/%d files, stage: %s) - results may be incomplete", pct, processed, total, stage)
}
