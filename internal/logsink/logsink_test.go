package logsink

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"guarder/internal/logger"
)

func openTestSink(t *testing.T, maxBytes int64) (*Sink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdout.log")
	s, err := Open(path, maxBytes, logger.New(logger.Config{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestDrainAppendsUntilEOF(t *testing.T) {
	s, path := openTestSink(t, DefaultMaxBytes)
	defer func() { _ = s.Close() }()

	pr, pw := io.Pipe()
	go s.Drain(pr, nil)

	if _, err := pw.Write([]byte("hello ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := pw.Write([]byte("world\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = pw.Close()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not exit on EOF")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(b) != "hello world\n" {
		t.Fatalf("unexpected log content: %q", string(b))
	}
}

func TestDrainAppendModePreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdout.log")
	if err := os.WriteFile(path, []byte("earlier run\n"), 0o640); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	s, err := Open(path, DefaultMaxBytes, logger.New(logger.Config{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	pr, pw := io.Pipe()
	go s.Drain(pr, nil)
	_, _ = pw.Write([]byte("this run\n"))
	_ = pw.Close()
	<-s.Done()

	b, _ := os.ReadFile(path)
	if string(b) != "earlier run\nthis run\n" {
		t.Fatalf("append mode violated: %q", string(b))
	}
}

func TestRotationTruncatesAtCheckpoint(t *testing.T) {
	// A 1-byte limit makes any checkpoint rotate. The checkpoint only fires
	// after 1 MiB cumulative, so push a bit more than that through.
	s, path := openTestSink(t, 1)
	defer func() { _ = s.Close() }()

	pr, pw := io.Pipe()
	go s.Drain(pr, nil)

	chunk := bytes.Repeat([]byte("x"), readBufSize)
	total := 0
	for total <= checkpointBytes {
		if _, err := pw.Write(chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
		total += len(chunk)
	}
	// One more write lands after the checkpoint fires.
	if _, err := pw.Write([]byte("tail")); err != nil {
		t.Fatalf("write tail: %v", err)
	}
	_ = pw.Close()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(b)
	if !strings.Contains(content, "Log size exceeded. Rotated") {
		t.Fatalf("rotation marker missing: %q", truncateForLog(content))
	}
	// After truncation only the marker plus post-checkpoint writes remain,
	// so the file must be far below the cumulative bytes written.
	if len(b) > 2*readBufSize {
		t.Fatalf("log not truncated: %d bytes remain", len(b))
	}
	if !strings.HasSuffix(content, "tail") {
		t.Fatalf("post-rotation write lost: %q", truncateForLog(content))
	}
}

func TestDrainStopsWhenRunningCleared(t *testing.T) {
	s, _ := openTestSink(t, DefaultMaxBytes)
	defer func() { _ = s.Close() }()

	var running atomic.Bool
	running.Store(true)

	pr, pw := io.Pipe()
	go s.Drain(pr, &running)

	_, _ = pw.Write([]byte("one\n"))
	running.Store(false)
	// The flag is a hint checked per iteration; one more write unblocks the
	// pending read so the loop can observe it.
	_, _ = pw.Write([]byte("two\n"))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain ignored cleared running flag")
	}
	_ = pw.Close()
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
