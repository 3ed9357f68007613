package errors

import "fmt"

// PluginEmptyErr is returned when a plugin runner is invoked with an empty argv.
func PluginEmptyErr() *ContextdError {
	return New(ErrCodePluginEmpty, "plugin command is empty", nil).
		WithSuggestion("configure a non-empty argv for this file extension")
}

// PluginTimeoutErr is returned when the external parser process exceeds its
// wall-clock budget (30s).
func PluginTimeoutErr(cmd string) *ContextdError {
	return New(ErrCodePluginTimeout, fmt.Sprintf("plugin %q timed out", cmd), nil)
}

// PluginExitErr is returned when the external parser process exits non-zero.
func PluginExitErr(cmd string, status int, stderr string) *ContextdError {
	e := New(ErrCodePluginExit, fmt.Sprintf("plugin %q exited with status %d", cmd, status), nil)
	e.WithDetail("status", fmt.Sprintf("%d", status))
	if stderr != "" {
		e.WithDetail("stderr", stderr)
	}
	return e
}

// PluginBinaryErr is returned when a plugin's stdout is not valid UTF-8.
func PluginBinaryErr(cmd string) *ContextdError {
	return New(ErrCodePluginBinary, fmt.Sprintf("plugin %q produced non-UTF-8 output", cmd), nil)
}
