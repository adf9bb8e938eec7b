// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoHeadCommit is returned when a working copy has been initialized but holds no commits yet.
// It is not fatal to a sync: the coordinator records an empty batch and the NoHeadMarker hash.
var ErrNoHeadCommit = errors.New("repository has no HEAD commit")

// NoHeadMarker is stored as the head hash of a repository without commits.
const NoHeadMarker = "NO_HEAD"

// NotAGitRepositoryError is returned when a local path lacks git repository metadata.
type NotAGitRepositoryError struct {
	Path string
}

func (e *NotAGitRepositoryError) Error() string {
	return fmt.Sprintf("not a git repository: %q", e.Path)
}

// UnresolvableRemoteURLError is returned when no remote URL matcher accepts a URL.
type UnresolvableRemoteURLError struct {
	URL    string
	Reason string
}

func (e *UnresolvableRemoteURLError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unresolvable remote url: %q", e.URL)
	}
	return fmt.Sprintf("unresolvable remote url %q: %s", e.URL, e.Reason)
}

// MalformedLogRecordError is returned when git log output contains a record that cannot be parsed.
// Line is 1-based.
type MalformedLogRecordError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedLogRecordError) Error() string {
	return fmt.Sprintf("malformed log record at line %d (%s): %q", e.Line, e.Reason, e.Text)
}

// SubprocessError is returned when a git invocation cannot be started or exits non-zero.
type SubprocessError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("git %s (in %s) failed", strings.Join(e.Args, " "), e.Dir)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubprocessError) Unwrap() error {
	return e.Err
}
