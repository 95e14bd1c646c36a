// Package pidfile persists the identifiers of the daemon process and its
// current child as line-oriented "key: value" text. The record is overwritten
// on every spawn and read back by stop/status from a separate invocation.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Record pairs the daemon pid with the most recently spawned child pid.
type Record struct {
	DaemonPID int
	ChildPID  int
}

// ErrNotFound reports a missing record file.
var ErrNotFound = errors.New("pid record not found")

// MissingFieldError reports a record that parsed but lacked a required key.
// A record with a missing field is a parse failure, never a partial record.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s not found in pid record", e.Key)
}

// ParseError reports a recognized key whose value is not an integer.
type ParseError struct {
	Key   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %q", e.Key, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Save overwrites the record file with both identifiers. Single writer,
// best-effort atomicity is sufficient here.
func Save(path string, rec Record) error {
	content := fmt.Sprintf("daemon_pid: %d\nchild_pid: %d\n", rec.DaemonPID, rec.ChildPID)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write pid record %q: %w", path, err)
	}
	return nil
}

// Load parses the record file. Unknown keys are ignored for forward
// compatibility; daemon_pid and child_pid must both be present and
// integer-parseable.
func Load(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Record{}, fmt.Errorf("read pid record %q: %w", path, err)
	}

	var daemonPID, childPID *int
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "daemon_pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				return Record{}, &ParseError{Key: "daemon_pid", Value: value, Err: err}
			}
			daemonPID = &pid
		case "child_pid":
			pid, err := strconv.Atoi(value)
			if err != nil {
				return Record{}, &ParseError{Key: "child_pid", Value: value, Err: err}
			}
			childPID = &pid
		default:
			// Unknown keys are tolerated.
		}
	}

	if daemonPID == nil {
		return Record{}, &MissingFieldError{Key: "daemon_pid"}
	}
	if childPID == nil {
		return Record{}, &MissingFieldError{Key: "child_pid"}
	}
	return Record{DaemonPID: *daemonPID, ChildPID: *childPID}, nil
}
