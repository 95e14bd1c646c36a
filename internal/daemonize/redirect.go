package daemonize

import (
	"fmt"
	"os"
)

// ReleaseStdio points file descriptors 1 and 2 back at /dev/null. Closing the
// capture pipe's last write ends this way delivers EOF to the drain side at
// shutdown.
func ReleaseStdio() error {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer func() { _ = devnull.Close() }()
	return RedirectStdio(devnull)
}
