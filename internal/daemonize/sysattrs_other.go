//go:build !linux && !windows

package daemonize

import "syscall"

// ChildSysProcAttr returns the attributes applied to the supervised child.
// Parent-death signaling is Linux-only; elsewhere the child simply runs in
// the daemon's process group.
func ChildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
