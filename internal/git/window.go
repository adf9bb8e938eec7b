// internal/git/window.go
package git

import (
	"strconv"
	"time"

	"gitledger/internal/model"
)

// Window selects which commits a log invocation returns.
// Only one restriction is active: a since/until range, then since alone,
// then a commit limit, otherwise the full history.
type Window struct {
	Since time.Time
	Until time.Time
	Limit int
}

// WindowFromOptions builds the log window for a sync.
func WindowFromOptions(opts model.SyncOptions) Window {
	return Window{Since: opts.FromDate, Until: opts.ToDate, Limit: opts.Limit}
}

// Args returns the git log arguments for the window.
func (w Window) Args() []string {
	switch {
	case !w.Since.IsZero() && !w.Until.IsZero():
		return []string{"--since=" + formatDate(w.Since), "--until=" + formatDate(w.Until)}
	case !w.Since.IsZero():
		return []string{"--since=" + formatDate(w.Since)}
	case w.Limit > 0:
		return []string{"-n", strconv.Itoa(w.Limit)}
	default:
		return nil
	}
}

func formatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}
