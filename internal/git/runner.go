// internal/git/runner.go
package git

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"time"

	custom_errors "gitledger/internal/errors"
	"gitledger/internal/remote"
)

// Runner executes git with an explicit working directory.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary as a subprocess.
type ExecRunner struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecRunner creates a runner for the git binary found on PATH.
// A zero timeout leaves the deadline to the caller's context.
func NewExecRunner(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{binary: "git", timeout: timeout, logger: logger}
}

// Run executes git in dir and returns its stdout.
// The process working directory is never changed.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	shown := redactArgs(args)
	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("git command finished", "args", shown, "dir", dir, "duration", time.Since(start).String(), "error", err)
	if err == nil {
		return stdout.Bytes(), nil
	}

	subErr := &custom_errors.SubprocessError{Args: shown, Dir: dir, Stderr: stderr.String(), Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		subErr.Err = ctxErr
		subErr.Stderr = ""
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		subErr.ExitCode = exitErr.ExitCode()
	}
	return nil, subErr
}

// redactArgs drops credentials from URL arguments before they are logged or returned.
func redactArgs(args []string) []string {
	shown := make([]string, len(args))
	for i, a := range args {
		shown[i] = remote.StripCredentials(a)
	}
	return shown
}
