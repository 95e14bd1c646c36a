//go:build linux

package daemonize

import "syscall"

// ChildSysProcAttr returns the attributes applied to the supervised child.
// Pdeathsig makes the kernel SIGTERM the child if the daemon itself dies
// uncleanly, so an unsupervised orphan is never left running.
func ChildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
