package logging

import (
	"log/slog"
)

// SetupStdioMode initializes logging for stdio JSON-RPC server mode.
// This is critical for JSON-RPC tool protocol compliance:
// - Logs ONLY to file (never stdout/stderr)
// - Uses JSON format for structured logs
// - Always enables debug level for complete diagnostics
//
// BUG-034: JSON-RPC tool protocol requires stdout to be used EXCLUSIVELY for JSON-RPC.
// Any writes to stdout/stderr before or during stdio mode will corrupt
// the protocol stream and cause "Failed to connect" errors.
func SetupStdioMode() (func(), error) {
	cfg := Config{
		Level:         "debug", // Always debug in stdio mode for full diagnostics
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: Never write to stderr in stdio mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	// Log that stdio mode logging is initialized
	slog.Info("stdio mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupStdioModeWithLevel initializes JSON-RPC-safe logging with a specific level.
func SetupStdioModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: Never write to stderr in stdio mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
