package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guarder.toml")
	content := "restart_interval = 2\nmax_log_size_mib = 1\nlog_level = \"debug\"\nhistory_dsn = \"off\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RestartIntervalSec)
	assert.Equal(t, int64(1), cfg.MaxLogSizeMiB)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "off", cfg.HistoryDSN)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guarder.toml")
	require.NoError(t, os.WriteFile(path, []byte("restart_interval = 9\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.RestartIntervalSec)
	assert.Equal(t, Default().MaxLogSizeMiB, cfg.MaxLogSizeMiB)
}

func TestLoadRejectsNonPositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guarder.toml")
	require.NoError(t, os.WriteFile(path, []byte("restart_interval = 0\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
