// Package logsink captures the supervised command's combined output into a
// size-bounded log file. A dedicated drain goroutine copies from the capture
// pipe into the file and rotates by truncating in place once the file grows
// past the configured maximum.
//
// Rotation is destructive: no backup segment is kept, history is discarded.
// Size accounting is also approximate: the file length is only re-checked
// after every checkpointBytes written, so the real bound is the configured
// maximum plus up to one checkpoint of slack.
package logsink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// checkpointBytes is how much must be written between size checks.
	checkpointBytes = 1 << 20
	// readBufSize matches the pipe read granularity.
	readBufSize = 4096
)

// DefaultMaxBytes bounds the capture log when no size is configured.
const DefaultMaxBytes = 10 << 20

// Sink appends captured output to a single log file. The file handle is
// shared between the drain goroutine and the shutdown path, guarded by mu.
type Sink struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxBytes int64
	diag     *slog.Logger

	done chan struct{}
}

// Open opens the capture log in append mode, creating it if absent. Appending
// means captured output survives daemon restarts until rotation discards it.
func Open(path string, maxBytes int64, diag *slog.Logger) (*Sink, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open capture log %q: %w", path, err)
	}
	return &Sink{
		file:     f,
		path:     path,
		maxBytes: maxBytes,
		diag:     diag,
		done:     make(chan struct{}),
	}, nil
}

// Drain copies r into the log until EOF or a read error, checkpointing the
// file size every checkpointBytes. It is meant to run in its own goroutine;
// Done is closed when it returns. running is only read, as an early-exit
// hint; the authoritative exit condition is EOF on the pipe.
func (s *Sink) Drain(r io.Reader, running *atomic.Bool) {
	defer close(s.done)

	buf := make([]byte, readBufSize)
	var written int64
	for running == nil || running.Load() {
		n, err := r.Read(buf)
		if n > 0 {
			if written >= checkpointBytes {
				written = 0
				s.checkpoint()
			}
			if werr := s.write(buf[:n]); werr != nil {
				s.diag.Error("capture log write failed", "path", s.path, "error", werr)
				return
			}
			written += int64(n)
		}
		if err != nil {
			if err != io.EOF {
				s.diag.Error("capture pipe read failed", "error", err)
			}
			return
		}
	}
}

// Done is closed once the drain goroutine has exited.
func (s *Sink) Done() <-chan struct{} { return s.done }

// checkpoint re-stats the file and truncates it when over the limit,
// leaving a timestamped marker as the only content.
func (s *Sink) checkpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.file.Stat()
	if err != nil {
		s.diag.Error("capture log stat failed", "path", s.path, "error", err)
		return
	}
	if st.Size() <= s.maxBytes {
		return
	}
	if err := s.file.Truncate(0); err != nil {
		s.diag.Error("capture log truncate failed", "path", s.path, "error", err)
		return
	}
	marker := fmt.Sprintf("[%s] Log size exceeded. Rotated\n", time.Now().UTC().Format(time.RFC3339))
	if _, err := s.file.WriteString(marker); err != nil {
		s.diag.Error("capture log marker write failed", "path", s.path, "error", err)
	}
}

func (s *Sink) write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.Write(b)
	return err
}

// Sync durably flushes the log file. Called from the shutdown path.
func (s *Sink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Close syncs and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.file.Sync()
	return s.file.Close()
}

// Path returns the capture log path.
func (s *Sink) Path() string { return s.path }
