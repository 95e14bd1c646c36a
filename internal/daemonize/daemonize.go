// Package daemonize detaches the supervisor from its invoking terminal.
//
// Classic double-fork daemonization is not expressible in Go (the runtime
// cannot survive a bare fork), so detachment is a single re-exec: the CLI
// invocation spawns its own executable again with a marker argument and
// Setsid, then exits. The re-exec'd process runs in a fresh session with no
// controlling terminal and finishes detaching itself with Finish. The
// operation is all-or-nothing: any failure aborts the invocation.
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Relaunch starts the current executable again with the given arguments in a
// new session, detached from the invoking terminal, and returns the spawned
// daemon's pid. The caller is expected to exit shortly after.
func Relaunch(args []string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable path: %w", err)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer func() { _ = devnull.Close() }()

	// #nosec G204 -- re-executing our own binary
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return 0, fmt.Errorf("release daemon process: %w", err)
	}
	return pid, nil
}

// Finish completes detachment inside the re-exec'd daemon process: it changes
// the working directory to the filesystem root so the daemon pins no mount
// point, and returns the daemon's own pid.
func Finish() (int, error) {
	if err := os.Chdir("/"); err != nil {
		return 0, fmt.Errorf("chdir to /: %w", err)
	}
	return os.Getpid(), nil
}
