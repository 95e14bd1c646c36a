package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guarder/internal/config"
	"guarder/internal/statusdir"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestDaemonStageArgs(t *testing.T) {
	dir := statusdir.At("/work/guarder.status.d")
	flags := &StartFlags{RestartInterval: 3, MaxLogSizeMiB: 7, LogLevel: "debug"}
	args := daemonStageArgs(dir, flags, []string{"sh", "-c", "exit 1"})

	assert.Equal(t, []string{
		"start",
		"--daemon-stage",
		"--status-dir", "/work/guarder.status.d",
		"--restart-interval", "3",
		"--max-log-size-mib", "7",
		"--log-level", "debug",
		"--",
		"sh", "-c", "exit 1",
	}, args)
}

func TestDaemonStageArgsParseBackIntoStartFlags(t *testing.T) {
	dir := statusdir.At("/work/guarder.status.d")
	orig := &StartFlags{RestartInterval: 2, MaxLogSizeMiB: 1, HistoryDSN: "off"}
	args := daemonStageArgs(dir, orig, []string{"sleep", "5"})

	parsed := &StartFlags{}
	cmd := createStartCommand(&GlobalFlags{}, parsed)
	// Drop the leading "start"; cobra would have consumed it.
	require.NoError(t, cmd.ParseFlags(args[1:]))

	assert.True(t, parsed.DaemonStage)
	assert.Equal(t, "/work/guarder.status.d", parsed.StatusDir)
	assert.Equal(t, 2, parsed.RestartInterval)
	assert.Equal(t, int64(1), parsed.MaxLogSizeMiB)
	assert.Equal(t, "off", parsed.HistoryDSN)
	assert.Equal(t, []string{"sleep", "5"}, cmd.Flags().Args())
}

func TestApplyConfigFlagPrecedence(t *testing.T) {
	flags := &StartFlags{}
	cmd := createStartCommand(&GlobalFlags{}, flags)
	require.NoError(t, cmd.ParseFlags([]string{"--restart-interval", "11"}))

	cfg := config.Config{RestartIntervalSec: 5, MaxLogSizeMiB: 42, LogLevel: "warn"}
	applyConfig(cmd, flags, cfg)

	// Explicit flag wins; unset flags take file values.
	assert.Equal(t, 11, flags.RestartInterval)
	assert.Equal(t, int64(42), flags.MaxLogSizeMiB)
	assert.Equal(t, "warn", flags.LogLevel)
}
