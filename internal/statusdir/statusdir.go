// Package statusdir resolves the per-working-directory state layout used by
// the daemon and the control commands. Everything guarder persists lives in
// one fixed subdirectory so that a later invocation can find the processes
// started by an earlier, now-detached one.
package statusdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Name is the fixed subdirectory created under the invocation's working
// directory.
const Name = "guarder.status.d"

// Dir is an absolute path to an existing status directory.
type Dir string

// Resolve creates (if needed) the status directory under base and returns its
// absolute path. base defaults to the current working directory. The path must
// be absolute because the daemon chdirs to / after detaching.
func Resolve(base string) (Dir, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		base = wd
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve status dir base %q: %w", base, err)
	}
	dir := filepath.Join(abs, Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create status dir %q: %w", dir, err)
	}
	return Dir(dir), nil
}

// At wraps an already-resolved absolute status directory path without
// touching the filesystem. Used by the daemon stage, which receives the path
// from the launching invocation.
func At(path string) Dir { return Dir(path) }

func (d Dir) String() string { return string(d) }

// PIDFile is the persisted daemon/child pid record.
func (d Dir) PIDFile() string { return filepath.Join(string(d), "pid") }

// LockFile is the advisory instance lock. Content is irrelevant.
func (d Dir) LockFile() string { return filepath.Join(string(d), "lock") }

// CaptureLog holds the supervised command's combined output.
func (d Dir) CaptureLog() string { return filepath.Join(string(d), "stdout.log") }

// DiagnosticLog holds the daemon's own structured log.
func (d Dir) DiagnosticLog() string { return filepath.Join(string(d), "guarder.log") }

// HistoryDB is the sqlite database recording start/exit events.
func (d Dir) HistoryDB() string { return filepath.Join(string(d), "history.db") }
