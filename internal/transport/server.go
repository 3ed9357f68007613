// Package transport serves the hybrid store over HTTP: POST /query and
// GET /stats, the network API spec.md §1 names alongside the JSON-RPC tool
// protocol internal/mcp serves over stdio. Grounded on the pack's gin-based
// HTTP+sqlite RAG services (other_examples' unified-rag-service), which
// route a single gin.Engine through a small set of JSON handlers backed by
// a storage layer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sandy-sachin7/contextd/internal/daemon"
)

// Backend is whatever answers Query/Stats calls on the HTTP server's
// behalf. *daemon.Client and the stdio-serving localBackend both satisfy
// this without change, since it mirrors internal/mcp.QueryBackend's shape.
type Backend interface {
	Query(ctx context.Context, params daemon.QueryParams) ([]daemon.QueryResult, error)
	Stats(ctx context.Context) (*daemon.StatsResult, error)
}

// Server is the HTTP transport for contextd's query/stats operations.
type Server struct {
	backend Backend
	engine  *gin.Engine
	logger  *slog.Logger
}

// NewServer builds an HTTP server around backend. The gin engine runs in
// release mode with only Recovery and a request-id middleware attached —
// contextd has its own structured logging (internal/logging), so gin's
// default access logger is left off.
func NewServer(backend Backend) (*Server, error) {
	if backend == nil {
		return nil, errors.New("query backend is required")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware())

	s := &Server{backend: backend, engine: engine, logger: slog.Default()}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.POST("/query", s.handleQuery)
	s.engine.GET("/stats", s.handleStats)
}

// requestIDMiddleware stamps every request with a UUID, for correlating a
// client-visible error against the matching daemon log line.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// queryRequest mirrors daemon.QueryParams field-for-field; RecencyWeight is
// a pointer here too so an explicit 0 in the request body survives JSON
// decoding distinct from the field being absent.
type queryRequest struct {
	Query         string   `json:"query" binding:"required"`
	Limit         int      `json:"limit,omitempty"`
	StartTime     int64    `json:"start_time,omitempty"`
	EndTime       int64    `json:"end_time,omitempty"`
	FileTypes     []string `json:"file_types,omitempty"`
	Paths         []string `json:"paths,omitempty"`
	MinScore      float64  `json:"min_score,omitempty"`
	RecencyWeight *float64 `json:"recency_weight,omitempty"`
}

type queryResponse struct {
	Results []daemon.QueryResult `json:"results"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := daemon.QueryParams{
		Query:         req.Query,
		Limit:         req.Limit,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		FileTypes:     req.FileTypes,
		Paths:         req.Paths,
		MinScore:      req.MinScore,
		RecencyWeight: req.RecencyWeight,
	}
	if err := params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.backend.Query(c.Request.Context(), params)
	if err != nil {
		s.logger.Error("query failed", slog.String("request_id", c.GetString("request_id")), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, queryResponse{Results: results})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.backend.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("stats failed", slog.String("request_id", c.GetString("request_id")), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListenAndServe binds addr and blocks serving HTTP requests until ctx is
// canceled, then shuts down gracefully. Mirrors internal/daemon.Server's
// ctx-cancel-closes-listener shutdown pattern, adapted to net/http.Server's
// own Shutdown method instead of a raw listener.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	slog.Info("http transport listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
