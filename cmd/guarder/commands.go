package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"guarder/internal/config"
	"guarder/internal/control"
	"guarder/internal/daemonize"
	"guarder/internal/history"
	"guarder/internal/history/sqlite"
	"guarder/internal/lockfile"
	"guarder/internal/logger"
	"guarder/internal/statusdir"
	"guarder/internal/supervisor"
)

func createStartCommand(global *GlobalFlags, flags *StartFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [flags] -- <command...>",
		Short: "Start supervising a command as a detached daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.DaemonStage {
				return runDaemonStage(flags, args)
			}
			return runStart(cmd, global, flags, args)
		},
	}
	cmd.Flags().IntVar(&flags.RestartInterval, "restart-interval", 5, "seconds to wait before restarting the command")
	cmd.Flags().Int64Var(&flags.MaxLogSizeMiB, "max-log-size-mib", 10, "maximum captured log size in MiB before rotation")
	cmd.Flags().StringVar(&flags.HistoryDSN, "history-dsn", "", "history database path ('off' disables)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")

	cmd.Flags().BoolVar(&flags.DaemonStage, "daemon-stage", false, "")
	cmd.Flags().StringVar(&flags.StatusDir, "status-dir", "", "")
	_ = cmd.Flags().MarkHidden("daemon-stage")
	_ = cmd.Flags().MarkHidden("status-dir")
	return cmd
}

// runStart is the launching invocation: it resolves effective settings,
// fails fast when another instance holds the lock, re-execs the daemon
// stage, and returns immediately.
func runStart(cmd *cobra.Command, global *GlobalFlags, flags *StartFlags, command []string) error {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		return err
	}
	applyConfig(cmd, flags, cfg)

	if flags.RestartInterval <= 0 {
		return errors.New("--restart-interval must be positive")
	}
	if flags.MaxLogSizeMiB <= 0 {
		return errors.New("--max-log-size-mib must be positive")
	}

	dir, err := statusdir.Resolve("")
	if err != nil {
		return err
	}

	// Preflight only: the authoritative lock is taken by the daemon stage.
	// This check keeps a second concurrent start from daemonizing at all.
	probe, err := lockfile.Acquire(dir.LockFile())
	if err != nil {
		if errors.Is(err, lockfile.ErrAlreadyRunning) {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		return err
	}
	if err := probe.Release(); err != nil {
		return fmt.Errorf("release preflight lock: %w", err)
	}

	pid, err := daemonize.Relaunch(daemonStageArgs(dir, flags, command))
	if err != nil {
		return err
	}
	fmt.Printf("Daemon started with PID %d\n", pid)
	return nil
}

// applyConfig fills in file-provided defaults for flags the user did not set
// explicitly.
func applyConfig(cmd *cobra.Command, flags *StartFlags, cfg config.Config) {
	if !cmd.Flags().Changed("restart-interval") {
		flags.RestartInterval = cfg.RestartIntervalSec
	}
	if !cmd.Flags().Changed("max-log-size-mib") {
		flags.MaxLogSizeMiB = cfg.MaxLogSizeMiB
	}
	if !cmd.Flags().Changed("history-dsn") && cfg.HistoryDSN != "" {
		flags.HistoryDSN = cfg.HistoryDSN
	}
	if !cmd.Flags().Changed("log-level") && flags.LogLevel == "" {
		flags.LogLevel = cfg.LogLevel
	}
}

// daemonStageArgs rebuilds the argument vector for the re-exec'd daemon.
// Settings are passed resolved, since the daemon chdirs away from the
// working directory any config file lived in.
func daemonStageArgs(dir statusdir.Dir, flags *StartFlags, command []string) []string {
	args := []string{
		"start",
		"--daemon-stage",
		"--status-dir", dir.String(),
		"--restart-interval", strconv.Itoa(flags.RestartInterval),
		"--max-log-size-mib", strconv.FormatInt(flags.MaxLogSizeMiB, 10),
	}
	if flags.HistoryDSN != "" {
		args = append(args, "--history-dsn", flags.HistoryDSN)
	}
	if flags.LogLevel != "" {
		args = append(args, "--log-level", flags.LogLevel)
	}
	args = append(args, "--")
	return append(args, command...)
}

// runDaemonStage runs inside the detached process: acquire the instance
// lock, finish detaching, then supervise until shutdown.
func runDaemonStage(flags *StartFlags, command []string) error {
	if flags.StatusDir == "" {
		return errors.New("daemon stage requires --status-dir")
	}
	dir := statusdir.At(flags.StatusDir)
	diag := logger.New(logger.Config{Path: dir.DiagnosticLog(), Level: flags.LogLevel})

	lock, err := lockfile.Acquire(dir.LockFile())
	if err != nil {
		diag.Error("instance lock unavailable", "error", err)
		return err
	}
	// Held for the daemon's lifetime; the OS releases it at process exit,
	// including crashes.
	defer func() { _ = lock.Release() }()

	daemonPID, err := daemonize.Finish()
	if err != nil {
		diag.Error("detach failed", "error", err)
		return err
	}

	hist := openHistory(flags.HistoryDSN, dir, diag)
	defer func() { _ = hist.Close() }()

	sup, err := supervisor.New(supervisor.Config{
		Dir:             dir,
		Command:         command,
		RestartInterval: time.Duration(flags.RestartInterval) * time.Second,
		MaxLogBytes:     flags.MaxLogSizeMiB << 20,
		DaemonPID:       daemonPID,
		RedirectStdio:   true,
		History:         hist,
		Diag:            diag,
	})
	if err != nil {
		diag.Error("supervisor setup failed", "error", err)
		return err
	}
	diag.Info("daemon started", "pid", daemonPID, "command", command)
	if err := sup.Run(context.Background()); err != nil {
		diag.Error("supervision aborted", "error", err)
		return err
	}
	return nil
}

// openHistory returns the configured history sink, degrading to a no-op on
// failure: supervision never depends on history working.
func openHistory(dsn string, dir statusdir.Dir, diag *slog.Logger) history.Sink {
	if dsn == "off" {
		return history.Nop{}
	}
	if dsn == "" {
		dsn = dir.HistoryDB()
	}
	sink, err := sqlite.New(dsn)
	if err != nil {
		diag.Warn("history disabled", "dsn", dsn, "error", err)
		return history.Nop{}
	}
	return sink
}

func createStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon and its supervised command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := statusdir.Resolve("")
			if err != nil {
				return err
			}
			return control.Stop(dir, os.Stdout)
		},
	}
}

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report liveness of the daemon and its supervised command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := statusdir.Resolve("")
			if err != nil {
				return err
			}
			var hist history.Sink
			if flags.Events > 0 {
				if _, statErr := os.Stat(dir.HistoryDB()); statErr == nil {
					if sink, err := sqlite.New(dir.HistoryDB()); err == nil {
						hist = sink
						defer func() { _ = sink.Close() }()
					}
				}
			}
			return control.Status(dir, os.Stdout, flags.Events, hist)
		},
	}
	cmd.Flags().IntVar(&flags.Events, "events", 0, "also show the N most recent supervision events")
	return cmd
}
