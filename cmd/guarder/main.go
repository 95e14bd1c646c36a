package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// StartFlags holds flags for the start command.
type StartFlags struct {
	RestartInterval int
	MaxLogSizeMiB   int64
	HistoryDSN      string
	LogLevel        string

	// daemon-stage plumbing, hidden from help: set on the re-exec'd daemon
	// invocation only.
	DaemonStage bool
	StatusDir   string
}

// StatusFlags holds flags for the status command.
type StatusFlags struct {
	Events int
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startFlags := &StartFlags{}
	statusFlags := &StatusFlags{}

	root := &cobra.Command{
		Use:           "guarder",
		Short:         "Supervise a single command: launch it detached, restart it when it exits",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to a TOML config file with defaults")

	root.AddCommand(
		createStartCommand(globalFlags, startFlags),
		createStopCommand(),
		createStatusCommand(statusFlags),
	)
	return root
}
