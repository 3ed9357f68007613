// Package daemon provides a background service that keeps the Store and
// Embedder loaded in memory behind a Unix-socket JSON-RPC server, so
// repeated CLI or tool-protocol queries skip reopening the database and
// reinitializing the embedding model on every invocation.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.contextd/daemon.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.contextd/daemon.pid
	PIDPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration

	// AutoStart enables auto-starting the daemon from the CLI if it isn't
	// already running.
	// Default: false
	AutoStart bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}

	contextdDir := filepath.Join(home, ".contextd")

	return Config{
		SocketPath:          filepath.Join(contextdDir, "daemon.sock"),
		PIDPath:             filepath.Join(contextdDir, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
		AutoStart:           false,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directory for socket and PID files if it doesn't exist.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}
