// Package control implements the stop and status commands. Both run in a
// fresh, non-daemon invocation: they locate the previously daemonized
// processes through the persisted pid record and act on them with OS signals
// only.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"guarder/internal/history"
	"guarder/internal/pidfile"
	"guarder/internal/statusdir"
)

const (
	daemonGrace   = 1 * time.Second
	childGrace    = 5 * time.Second
	childPollStep = 100 * time.Millisecond
)

// processExists probes pid liveness without delivering a signal. ESRCH means
// the process is gone; any other failure (e.g. EPERM) is conservatively
// treated as alive.
func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

// signalProcess delivers sig to pid. A target that is already gone counts as
// success.
func signalProcess(pid int, sig syscall.Signal) error {
	err := syscall.Kill(pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return fmt.Errorf("send %s to pid %d: %w", sig, pid, err)
}

// Stop terminates a previously started daemon and its child. It is
// idempotent: a missing record or dead daemon reports and returns cleanly.
// Escalation is graceful-then-forceful, applied to daemon and child
// independently.
func Stop(dir statusdir.Dir, out io.Writer) error {
	rec, err := pidfile.Load(dir.PIDFile())
	if err != nil {
		if errors.Is(err, pidfile.ErrNotFound) {
			fmt.Fprintln(out, "No pid record found; nothing to stop")
			return nil
		}
		return err
	}

	if !processExists(rec.DaemonPID) {
		fmt.Fprintf(out, "Daemon %d is not running\n", rec.DaemonPID)
		if !processExists(rec.ChildPID) {
			fmt.Fprintf(out, "Child process %d is not running\n", rec.ChildPID)
		}
		return nil
	}

	if err := signalProcess(rec.DaemonPID, syscall.SIGTERM); err != nil {
		return err
	}
	time.Sleep(daemonGrace)
	if processExists(rec.DaemonPID) {
		fmt.Fprintf(out, "Daemon %d is still running after SIGTERM, sending SIGKILL\n", rec.DaemonPID)
		if err := signalProcess(rec.DaemonPID, syscall.SIGKILL); err != nil {
			return err
		}
	}

	// The daemon's own shutdown path signals the child; polling covers the
	// case where the daemon died before its handler could.
	fmt.Fprintf(out, "Stopped daemon %d, waiting for child %d to exit\n", rec.DaemonPID, rec.ChildPID)
	deadline := time.Now().Add(childGrace)
	for time.Now().Before(deadline) {
		if !processExists(rec.ChildPID) {
			fmt.Fprintf(out, "Child process %d exited\n", rec.ChildPID)
			return nil
		}
		time.Sleep(childPollStep)
	}
	if processExists(rec.ChildPID) {
		fmt.Fprintf(out, "Child process %d is still running after %s, killing it\n", rec.ChildPID, childGrace)
		if err := signalProcess(rec.ChildPID, syscall.SIGKILL); err != nil {
			return err
		}
	}
	return nil
}

// ProcessStatus describes one recorded pid.
type ProcessStatus struct {
	PID     int
	Running bool
	Uptime  time.Duration // zero when not running or unavailable
}

// StatusReport is the liveness view of the recorded daemon/child pair.
type StatusReport struct {
	Daemon ProcessStatus
	Child  ProcessStatus
}

// Inspect probes both recorded pids. The record may momentarily name a
// just-exited child; liveness is what the probe says now.
func Inspect(dir statusdir.Dir) (StatusReport, error) {
	rec, err := pidfile.Load(dir.PIDFile())
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		Daemon: probe(rec.DaemonPID),
		Child:  probe(rec.ChildPID),
	}, nil
}

func probe(pid int) ProcessStatus {
	st := ProcessStatus{PID: pid, Running: processExists(pid)}
	if st.Running {
		st.Uptime = uptime(pid)
	}
	return st
}

// uptime derives how long pid has been alive from its start time.
// Best-effort: zero when the platform cannot tell.
func uptime(pid int) time.Duration {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	d := time.Since(time.UnixMilli(ms))
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// Status prints the liveness of both recorded processes and, when events > 0,
// the most recent supervision history.
func Status(dir statusdir.Dir, out io.Writer, events int, hist history.Sink) error {
	report, err := Inspect(dir)
	if err != nil {
		return err
	}
	printStatusLine(out, "Daemon", report.Daemon)
	printStatusLine(out, "Child", report.Child)

	if events > 0 && hist != nil {
		recent, err := hist.Recent(context.Background(), events)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(recent) > 0 {
			fmt.Fprintln(out, "Recent events:")
			for _, e := range recent {
				detail := e.Detail
				if detail != "" {
					detail = " (" + detail + ")"
				}
				fmt.Fprintf(out, "  [%s] child %d %s%s\n",
					e.OccurredAt.UTC().Format(time.RFC3339), e.ChildPID, e.Type, detail)
			}
		}
	}
	return nil
}

func printStatusLine(out io.Writer, label string, st ProcessStatus) {
	if st.Running && st.Uptime > 0 {
		fmt.Fprintf(out, "%s PID: %d, running: true, uptime: %s\n", label, st.PID, st.Uptime)
		return
	}
	fmt.Fprintf(out, "%s PID: %d, running: %t\n", label, st.PID, st.Running)
}
