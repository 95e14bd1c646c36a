// Package supervisor owns the spawn → wait → restart cycle for the
// supervised command. It runs inside the detached daemon process, feeds the
// child's combined output to the capture sink, and persists the daemon/child
// pid pair on every spawn so control commands in later invocations can find
// both processes.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"guarder/internal/daemonize"
	"guarder/internal/history"
	"guarder/internal/logsink"
	"guarder/internal/pidfile"
	"guarder/internal/statusdir"
)

// DefaultRestartInterval is applied when no interval is configured.
const DefaultRestartInterval = 5 * time.Second

// Config describes one supervision run.
type Config struct {
	Dir             statusdir.Dir
	Command         []string
	RestartInterval time.Duration
	MaxLogBytes     int64
	DaemonPID       int // pid recorded as daemon_pid; 0 means os.Getpid()

	// RedirectStdio moves the whole process's stdout/stderr onto the capture
	// pipe. Disabled in tests, where the supervisor must not steal the test
	// runner's descriptors.
	RedirectStdio bool

	History history.Sink
	Diag    *slog.Logger
}

// Supervisor coordinates the restart loop, the capture sink, and the
// asynchronous termination request. Shared mutable state is explicit: the
// running flag is atomic and the current child handle sits behind a mutex.
type Supervisor struct {
	cfg     Config
	running atomic.Bool

	// mu guards the cells shared with the termination path: the current
	// child handle, the capture writer, and the sink handle.
	mu      sync.Mutex
	child   *os.Process
	sink    *logsink.Sink
	capture io.Writer // destination for the supervisor's own timestamped lines
}

// New validates cfg and prepares a supervisor. Run does the actual work.
func New(cfg Config) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("no command to supervise")
	}
	if cfg.RestartInterval <= 0 {
		cfg.RestartInterval = DefaultRestartInterval
	}
	if cfg.DaemonPID == 0 {
		cfg.DaemonPID = os.Getpid()
	}
	if cfg.History == nil {
		cfg.History = history.Nop{}
	}
	if cfg.Diag == nil {
		cfg.Diag = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{cfg: cfg}, nil
}

// Run executes the supervision loop until a shutdown request arrives. It
// returns nil on orderly shutdown; any spawn, wait, or record-persist failure
// is returned and must abort the daemon, since a supervisor that cannot
// observe or record its child must not keep operating silently.
func (s *Supervisor) Run(ctx context.Context) error {
	sink, err := logsink.Open(s.cfg.Dir.CaptureLog(), s.cfg.MaxLogBytes, s.cfg.Diag)
	if err != nil {
		return err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = sink.Close()
		return fmt.Errorf("create capture pipe: %w", err)
	}

	s.running.Store(true)
	go sink.Drain(pr, &s.running)

	var childOut *os.File
	if s.cfg.RedirectStdio {
		if err := daemonize.RedirectStdio(pw); err != nil {
			_ = pw.Close()
			_ = pr.Close()
			_ = sink.Close()
			return err
		}
		// Descriptors 1 and 2 now hold the pipe open; this handle is done.
		_ = pw.Close()
		childOut = os.Stdout
	} else {
		childOut = pw
	}

	s.mu.Lock()
	s.sink = sink
	s.capture = childOut
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	loopDone := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			s.Shutdown()
		case <-ctx.Done():
			s.Shutdown()
		case <-loopDone:
		}
	}()

	loopErr := s.loop(ctx, childOut)
	close(loopDone)

	// Close the last write ends so the drain goroutine sees EOF, then flush
	// the capture log durably before the daemon exits.
	if s.cfg.RedirectStdio {
		if err := daemonize.ReleaseStdio(); err != nil {
			s.cfg.Diag.Error("release stdio failed", "error", err)
		}
	} else {
		_ = pw.Close()
	}
	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		s.cfg.Diag.Warn("capture drain did not finish in time")
	}
	if err := sink.Close(); err != nil {
		s.cfg.Diag.Error("close capture log failed", "error", err)
	}
	s.cfg.Diag.Info("supervision finished", "error", loopErr)
	return loopErr
}

func (s *Supervisor) loop(ctx context.Context, childOut *os.File) error {
	for s.running.Load() {
		// #nosec G204 -- the command is exactly what the user asked to supervise
		cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
		cmd.Stdout = childOut
		cmd.Stderr = childOut
		cmd.SysProcAttr = daemonize.ChildSysProcAttr()

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("spawn %q: %w", s.cfg.Command[0], err)
		}
		childPID := cmd.Process.Pid
		s.setChild(cmd.Process)

		rec := pidfile.Record{DaemonPID: s.cfg.DaemonPID, ChildPID: childPID}
		if err := pidfile.Save(s.cfg.Dir.PIDFile(), rec); err != nil {
			return err
		}
		s.recordEvent(ctx, history.EventStarted, childPID, "")
		s.cfg.Diag.Info("child started", "pid", childPID)

		waitErr := cmd.Wait()
		s.setChild(nil)

		detail, err := exitDetail(cmd, waitErr)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.capture, "[%s] Child process %d exited with %s\n", timestamp(), childPID, detail)
		s.recordEvent(ctx, history.EventExited, childPID, detail)
		s.cfg.Diag.Info("child exited", "pid", childPID, "detail", detail)

		if !s.running.Load() {
			break
		}
		fmt.Fprintf(s.capture, "[%s] Restarting child process in %d seconds...\n",
			timestamp(), int(s.cfg.RestartInterval.Seconds()))
		s.restartDelay()
	}
	return nil
}

// restartDelay sleeps up to the configured interval in one-second slices,
// re-checking the running flag so a shutdown request is honored promptly.
func (s *Supervisor) restartDelay() {
	deadline := time.Now().Add(s.cfg.RestartInterval)
	for s.running.Load() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > time.Second {
			remaining = time.Second
		}
		time.Sleep(remaining)
	}
}

// Shutdown is the termination request: it signals the current child, clears
// the running flag exactly once, and emits the timestamped shutdown line.
// The main loop observes the flag and performs the orderly unwind itself,
// flushing the capture log before the process exits.
func (s *Supervisor) Shutdown() {
	if child := s.currentChild(); child != nil {
		// Delivery failure means the child is already gone.
		_ = child.Signal(syscall.SIGTERM)
	}
	if s.running.CompareAndSwap(true, false) {
		s.mu.Lock()
		capture, sink := s.capture, s.sink
		s.mu.Unlock()
		if capture != nil {
			fmt.Fprintf(capture, "[%s] Daemon: received shutdown request, stopping...\n", timestamp())
		}
		if sink != nil {
			if err := sink.Sync(); err != nil {
				s.cfg.Diag.Error("sync capture log failed", "error", err)
			}
		}
	}
}

// CurrentChildPID reports the presently running child, or 0 when no child is
// alive (before the first spawn, between restarts, after shutdown).
func (s *Supervisor) CurrentChildPID() int {
	if child := s.currentChild(); child != nil {
		return child.Pid
	}
	return 0
}

func (s *Supervisor) setChild(p *os.Process) {
	s.mu.Lock()
	s.child = p
	s.mu.Unlock()
}

func (s *Supervisor) currentChild() *os.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child
}

func (s *Supervisor) recordEvent(ctx context.Context, typ history.EventType, pid int, detail string) {
	e := history.Event{Type: typ, OccurredAt: time.Now().UTC(), ChildPID: pid, Detail: detail}
	if err := s.cfg.History.Send(ctx, e); err != nil {
		s.cfg.Diag.Warn("history record failed", "event", string(typ), "error", err)
	}
}

// exitDetail turns a Wait result into a loggable description. A nonzero exit
// or death by signal is a normal observation; anything else from Wait means
// the supervisor lost sight of its child and is fatal.
func exitDetail(cmd *exec.Cmd, waitErr error) (string, error) {
	if waitErr == nil {
		return cmd.ProcessState.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ProcessState.String(), nil
	}
	return "", fmt.Errorf("wait for child: %w", waitErr)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
