//go:build linux

package daemonize

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// RedirectStdio points file descriptors 1 and 2 at f process-wide, so every
// subsequent write to stdout or stderr, including from spawned children that
// inherit them, lands in f.
func RedirectStdio(f *os.File) error {
	fd := int(f.Fd())
	if err := unix.Dup3(fd, 1, 0); err != nil {
		return fmt.Errorf("redirect stdout: %w", err)
	}
	if err := unix.Dup3(fd, 2, 0); err != nil {
		return fmt.Errorf("redirect stderr: %w", err)
	}
	return nil
}
