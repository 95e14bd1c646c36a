// Package lockfile enforces single-instance execution per working directory
// with a non-blocking exclusive advisory lock. The kernel releases the lock
// when the holding process exits, so a crashed daemon never leaves a stale
// lock behind.
package lockfile

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning indicates a live competing instance owns the lock.
// Callers must not retry: the lock is held for the owner's whole lifetime.
var ErrAlreadyRunning = errors.New("another guarder instance is already running")

// Handle is a held exclusive lock. It stays open for the daemon's lifetime;
// Release exists for the control flow of tests and the launch preflight.
type Handle struct {
	fl *flock.Flock
}

// Acquire opens (creating if absent) the lock file and attempts a
// non-blocking exclusive lock.
func Acquire(path string) (*Handle, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %q: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %q is held: %w", path, ErrAlreadyRunning)
	}
	return &Handle{fl: fl}, nil
}

// Release unlocks and closes the lock file.
func (h *Handle) Release() error {
	if h == nil || h.fl == nil {
		return nil
	}
	return h.fl.Unlock()
}

// Path returns the lock file path.
func (h *Handle) Path() string { return h.fl.Path() }
