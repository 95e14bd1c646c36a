package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pid")
	want := Record{DaemonPID: 4321, ChildPID: 9876}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("record mismatch: got %+v want %+v", got, want)
	}
}

func TestSaveOverwritesPreviousRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pid")
	if err := Save(path, Record{DaemonPID: 1, ChildPID: 2}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(path, Record{DaemonPID: 1, ChildPID: 3}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ChildPID != 3 {
		t.Fatalf("stale child pid: got %d want 3", got.ChildPID)
	}
	if got.DaemonPID != 1 {
		t.Fatalf("daemon pid changed: got %d want 1", got.DaemonPID)
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "pid"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadToleratesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pid")
	content := "version: 2\ndaemon_pid: 10\nextra: stuff\nchild_pid: 20\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DaemonPID != 10 || got.ChildPID != 20 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestLoadMissingField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pid")
	if err := os.WriteFile(path, []byte("daemon_pid: 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Key != "child_pid" {
		t.Fatalf("wrong missing key: %q", missing.Key)
	}
}

func TestLoadParseErrorNamesValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pid")
	if err := os.WriteFile(path, []byte("daemon_pid: banana\nchild_pid: 20\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	var parse *ParseError
	if !errors.As(err, &parse) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parse.Key != "daemon_pid" || parse.Value != "banana" {
		t.Fatalf("unexpected parse error detail: %+v", parse)
	}
}
