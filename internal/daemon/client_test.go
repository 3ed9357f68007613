package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSocketPath creates a unique socket path that's short enough for Unix sockets.
func testSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("contextd-test-%d.sock", time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// mockServerOnce starts a Unix listener that accepts exactly one connection,
// decodes one Request, and replies with resp.
func mockServerOnce(t *testing.T, socketPath string, resp Response) {
	t.Helper()
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			return
		}
		_ = json.NewEncoder(conn).Encode(resp)
	}()
}

func TestNewClient(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg)

	assert.NotNil(t, client)
	assert.Equal(t, cfg.SocketPath, client.socketPath)
	assert.Equal(t, cfg.Timeout, client.timeout)
}

func TestClient_IsRunning_NoSocket(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(tmpDir, "nonexistent.sock"),
		Timeout:    5 * time.Second,
	}

	client := NewClient(cfg)
	assert.False(t, client.IsRunning(), "should return false when socket doesn't exist")
}

func TestClient_IsRunning_WithSocket(t *testing.T) {
	socketPath := testSocketPath(t)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)
	assert.True(t, client.IsRunning(), "should return true when socket is listening")
}

func TestClient_Ping_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	mockServerOnce(t, socketPath, NewSuccessResponse("", PingResult{Pong: true}))

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_Query_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := []QueryResult{
		{Content: "test content", FilePath: "/test.go", Score: 0.95},
	}
	mockServerOnce(t, socketPath, NewSuccessResponse("", expected))

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)

	results, err := client.Query(context.Background(), QueryParams{Query: "test", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/test.go", results[0].FilePath)
	assert.InDelta(t, 0.95, results[0].Score, 0.001)
}

func TestClient_Query_Error(t *testing.T) {
	socketPath := testSocketPath(t)
	mockServerOnce(t, socketPath, NewErrorResponse("", ErrCodeQueryFailed, "no index found"))

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)

	_, err := client.Query(context.Background(), QueryParams{Query: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestClient_Query_InvalidParamsRejectedLocally(t *testing.T) {
	cfg := Config{SocketPath: "/tmp/unused.sock", Timeout: 5 * time.Second}
	client := NewClient(cfg)

	_, err := client.Query(context.Background(), QueryParams{Query: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestClient_Stats_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := StatsResult{FileCount: 3, ChunkCount: 42, DBSizeBytes: 4096}
	mockServerOnce(t, socketPath, NewSuccessResponse("", expected))

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, *stats)
}

func TestClient_Status_Success(t *testing.T) {
	socketPath := testSocketPath(t)
	expected := StatusResult{
		Running:        true,
		PID:            12345,
		Uptime:         "5m",
		EmbedderType:   "onnx",
		EmbedderStatus: "ready",
	}
	mockServerOnce(t, socketPath, NewSuccessResponse("", expected))

	cfg := Config{SocketPath: socketPath, Timeout: 5 * time.Second}
	client := NewClient(cfg)

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 12345, status.PID)
	assert.Equal(t, "onnx", status.EmbedderType)
}

func TestClient_Connect_Timeout(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "nonexistent.sock")

	cfg := Config{SocketPath: socketPath, Timeout: 100 * time.Millisecond}
	client := NewClient(cfg)

	_, err := client.Connect()
	require.Error(t, err)
}
