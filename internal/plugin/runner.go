// Package plugin invokes external parser processes configured per file
// extension and returns their stdout as text for the chunker to dispatch,
// per spec.md §4.6.
package plugin

import (
	"bytes"
	"context"
	"os/exec"
	"time"
	"unicode/utf8"

	cderrors "github.com/sandy-sachin7/contextd/internal/errors"
)

// Timeout is the wall-clock budget enforced on every plugin invocation.
// A var, not a const, so tests can shrink it instead of waiting 30s.
var Timeout = 30 * time.Second

// Runner spawns a configured external process, appends the target file path
// as a trailing argument, and captures its stdout.
type Runner struct{}

// NewRunner constructs a Runner. It holds no state; every call is
// independent.
func NewRunner() *Runner {
	return &Runner{}
}

// Run spawns argv[0] with argv[1:] plus filePath appended, waits up to
// Timeout, and returns stdout decoded as UTF-8 text.
//
// Errors: PluginEmptyErr if argv is empty, PluginTimeoutErr if the process
// does not exit within Timeout, PluginExitErr if it exits non-zero, and
// PluginBinaryErr if stdout is not valid UTF-8. The runner does not
// interpret the output; callers dispatch it through the chunker keyed by
// the original file extension.
func (r *Runner) Run(ctx context.Context, argv []string, filePath string) (string, error) {
	if len(argv) == 0 {
		return "", cderrors.PluginEmptyErr()
	}

	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	args := make([]string, 0, len(argv)+1)
	args = append(args, argv[1:]...)
	args = append(args, filePath)

	cmd := exec.CommandContext(runCtx, argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", cderrors.PluginTimeoutErr(argv[0])
	}
	if err != nil {
		status := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		}
		return "", cderrors.PluginExitErr(argv[0], status, stderr.String())
	}

	out := stdout.Bytes()
	if !utf8.Valid(out) {
		return "", cderrors.PluginBinaryErr(argv[0])
	}
	return string(out), nil
}
