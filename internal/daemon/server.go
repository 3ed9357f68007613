package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RequestHandler answers the RPC methods the Server dispatches to.
type RequestHandler interface {
	HandleQuery(ctx context.Context, params QueryParams) ([]QueryResult, error)
	GetStats() (StatsResult, error)
	EmbedderInfo() (name string, ready bool)
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{
		socketPath: socketPath,
	}, nil
}

// SetHandler sets the request handler for query/stats operations.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()

	return ctx.Err()
}

// handleConnection processes a single client connection: one request, one
// response, per spec.md's local transport.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		slog.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodStats:
		return s.handleStats(req)

	case MethodQuery:
		return s.handleQuery(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleQuery processes a query request.
func (s *Server) handleQuery(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params")
	}

	var params QueryParams
	if err := json.Unmarshal(paramsData, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.handler.HandleQuery(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeQueryFailed, err.Error())
	}

	return NewSuccessResponse(req.ID, results)
}

// handleStats processes a stats request.
func (s *Server) handleStats(req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	stats, err := s.handler.GetStats()
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
	}
	return NewSuccessResponse(req.ID, stats)
}

// getStatus assembles the server's own liveness with the handler's embedder
// readiness, if a handler is configured.
func (s *Server) getStatus() StatusResult {
	status := StatusResult{
		Running:        true,
		PID:            os.Getpid(),
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		EmbedderType:   "unavailable",
		EmbedderStatus: "unavailable",
	}

	if s.handler != nil {
		name, ready := s.handler.EmbedderInfo()
		status.EmbedderType = name
		if ready {
			status.EmbedderStatus = "ready"
		}
	}

	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
